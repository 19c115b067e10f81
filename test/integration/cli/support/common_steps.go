package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/cmd/lanedetect/cmd"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/cucumber/godog"
)

// iRunCommand executes the lanedetect CLI in-process. The leading program
// name is optional.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substitute(command)
	testCtx.LastCommand = command

	parts := strings.Fields(command)
	if len(parts) > 0 && parts[0] == "lanedetect" {
		parts = parts[1:]
	}

	root := cmd.GetRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(parts)

	start := time.Now()
	err := root.Execute()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %w\nStdout: %s\nStderr: %s",
			testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded when it should have failed\nOutput: %s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	expectedText = testCtx.substitute(expectedText)
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theErrorShouldMention looks at the returned error and at stderr.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error but the command succeeded")
	}
	combined := strings.ToLower(testCtx.LastError.Error() + "\n" + testCtx.LastStderr)
	if !strings.Contains(combined, strings.ToLower(errorText)) {
		return fmt.Errorf("error does not mention '%s'\nError: %v\nStderr: %s",
			errorText, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) parseOutputJSON() (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &v); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return v, nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.parseOutputJSON()
	return err
}

// theJSONShouldContain checks a dotted field path; numeric parts index arrays.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	v, err := testCtx.parseOutputJSON()
	if err != nil {
		return err
	}
	if _, err := lookupPath(v, field); err != nil {
		return fmt.Errorf("%w\nOutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldEqual(field, expected string) error {
	v, err := testCtx.parseOutputJSON()
	if err != nil {
		return err
	}
	got, err := lookupPath(v, field)
	if err != nil {
		return err
	}
	if s := fmt.Sprint(got); s != expected {
		return fmt.Errorf("field %s is %q, want %q", field, s, expected)
	}
	return nil
}

// iRememberTheJSONFieldAs stores a field of the last output for later steps.
func (testCtx *TestContext) iRememberTheJSONFieldAs(field, name string) error {
	v, err := testCtx.parseOutputJSON()
	if err != nil {
		return err
	}
	got, err := lookupPath(v, field)
	if err != nil {
		return err
	}
	testCtx.Vars[name] = fmt.Sprint(got)
	return nil
}

func lookupPath(v any, path string) (any, error) {
	cur := v
	for part := range strings.SplitSeq(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in path %s", part, path)
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in path %s", part, path)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q in path %s", cur, part, path)
		}
	}
	return cur, nil
}

func (testCtx *TestContext) outputResult() (*pipeline.FrameResult, error) {
	var res pipeline.FrameResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(testCtx.LastOutput)), &res); err != nil {
		return nil, fmt.Errorf("output is not a lane result: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	return &res, nil
}

func (testCtx *TestContext) theResultShouldHaveSegments(n int) error {
	res, err := testCtx.outputResult()
	if err != nil {
		return err
	}
	return checkSegments(res, n)
}

func (testCtx *TestContext) theResultShouldBeAFallback() error {
	res, err := testCtx.outputResult()
	if err != nil {
		return err
	}
	return checkFallback(res)
}

func (testCtx *TestContext) theResultShouldHaveALaneOnSide(side string) error {
	res, err := testCtx.outputResult()
	if err != nil {
		return err
	}
	return checkSide(res, side)
}

func checkSegments(res *pipeline.FrameResult, n int) error {
	if len(res.Segments) != n {
		return fmt.Errorf("expected %d segments, got %d: %+v", n, len(res.Segments), res.Segments)
	}
	return nil
}

func checkFallback(res *pipeline.FrameResult) error {
	if !res.Fallback {
		return fmt.Errorf("expected the no-vote fallback, got %+v", res.Segments)
	}
	for i, s := range res.Segments {
		if s.X1 != 0 || s.Y1 != 0 || s.X2 != 0 || s.Y2 != 0 {
			return fmt.Errorf("fallback segment %d is not zero: %+v", i, s)
		}
	}
	return nil
}

func checkSide(res *pipeline.FrameResult, side string) error {
	for _, l := range res.Lanes {
		if l.Side == side {
			return nil
		}
	}
	return fmt.Errorf("no %s lane in %+v", side, res.Lanes)
}

func (testCtx *TestContext) theCSVOutputShouldHaveRows(n int) error {
	lines := strings.Split(strings.TrimSpace(testCtx.LastOutput), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "source,side,x1,y1,x2,y2") {
		return fmt.Errorf("missing CSV header\nOutput: %s", testCtx.LastOutput)
	}
	if got := len(lines) - 1; got != n {
		return fmt.Errorf("expected %d CSV rows, got %d\nOutput: %s", n, got, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(filename string) error {
	path := testCtx.substitute(filename)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(filename, expected string) error {
	path := testCtx.substitute(filename)
	data, err := os.ReadFile(path) //nolint:gosec // scenario scratch file
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("%s does not contain '%s'\nContent: %s", path, expected, data)
	}
	return nil
}

func (testCtx *TestContext) aFileContaining(filename string, content *godog.DocString) error {
	path := testCtx.substitute(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(testCtx.substitute(content.Content)), 0o600)
}

func (testCtx *TestContext) theDirectoryShouldContainFiles(dir string, n int) error {
	path := testCtx.substitute(dir)
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(entries) != n {
		return fmt.Errorf("expected %d files in %s, got %d", n, path, len(entries))
	}
	return nil
}

// RegisterCommonSteps registers command and output step definitions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^I remember the JSON field "([^"]*)" as "([^"]*)"$`, testCtx.iRememberTheJSONFieldAs)

	sc.Step(`^the result should have (\d+) segments?$`, testCtx.theResultShouldHaveSegments)
	sc.Step(`^the result should be the no-vote fallback$`, testCtx.theResultShouldBeAFallback)
	sc.Step(`^the result should have a (left|right) lane$`, testCtx.theResultShouldHaveALaneOnSide)
	sc.Step(`^the CSV output should have (\d+) rows?$`, testCtx.theCSVOutputShouldHaveRows)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files?$`, testCtx.theDirectoryShouldContainFiles)
}
