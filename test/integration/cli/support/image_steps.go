package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/lanedetect/internal/testutil"
	"github.com/MeKo-Tech/lanedetect/internal/utils"
	"github.com/cucumber/godog"
)

const (
	sceneWidth  = 640
	sceneHeight = 480
)

func sceneByName(name string) (testutil.RoadScene, error) {
	scene, ok := testutil.StandardScenarios(sceneWidth, sceneHeight)[name]
	if !ok {
		return testutil.RoadScene{}, fmt.Errorf("unknown road scene %q", name)
	}
	return scene, nil
}

// theRoadScenesAreAvailable renders every standard scene into {tmp}/scenes.
func (testCtx *TestContext) theRoadScenesAreAvailable() error {
	dir := filepath.Join(testCtx.TempDir, "scenes")
	if err := testutil.EnsureDir(dir); err != nil {
		return err
	}
	for name, scene := range testutil.StandardScenarios(sceneWidth, sceneHeight) {
		if err := utils.SaveImage(scene.Render(), filepath.Join(dir, name+".png")); err != nil {
			return fmt.Errorf("write scene %s: %w", name, err)
		}
	}
	return nil
}

// aRawFrameOf writes the scene as packed BGR bytes to path.
func (testCtx *TestContext) aRawFrameOf(path, name string) error {
	scene, err := sceneByName(name)
	if err != nil {
		return err
	}
	path = testCtx.substitute(path)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, scene.BGR(), 0o600)
}

func (testCtx *TestContext) aFileWithBytes(path string, n int) error {
	path = testCtx.substitute(path)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, make([]byte, n), 0o600)
}

func (testCtx *TestContext) aCorruptImage(path string) error {
	path = testCtx.substitute(path)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("this is not a png"), 0o600)
}

// RegisterImageSteps registers scene and fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the road scenes are available$`, testCtx.theRoadScenesAreAvailable)
	sc.Step(`^a raw frame "([^"]*)" of the "([^"]*)" scene$`, testCtx.aRawFrameOf)
	sc.Step(`^a file "([^"]*)" with (\d+) bytes$`, testCtx.aFileWithBytes)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
}
