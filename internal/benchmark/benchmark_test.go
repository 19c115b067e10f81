package benchmark

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/lanes"
	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuite(t *testing.T) {
	suite := NewSuite()
	assert.NotNil(t, suite)
	assert.Empty(t, suite.benchmarks)

	suite.Add("test_benchmark", func() error {
		time.Sleep(1 * time.Millisecond)
		return nil
	})

	assert.Len(t, suite.benchmarks, 1)
	assert.Equal(t, []string{"test_benchmark"}, suite.Names())
}

func TestSuiteRun(t *testing.T) {
	suite := NewSuite()
	suite.Add("success_test", func() error {
		time.Sleep(1 * time.Millisecond)
		return nil
	})
	calls := 0
	suite.Add("error_test", func() error {
		calls++
		if calls == 2 {
			return errors.New("test error")
		}
		return nil
	})

	result := suite.Run("success_test", 5)
	assert.Equal(t, "success_test", result.Name)
	assert.Equal(t, 5, result.Iterations)
	require.NoError(t, result.Error)
	assert.Positive(t, result.Duration)
	assert.Positive(t, result.Average())

	result = suite.Run("error_test", 3)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "test error")
	assert.Equal(t, 1, result.Iterations)
	assert.Contains(t, result.String(), "ERROR")

	result = suite.Run("non_existent", 1)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not found")
	assert.Zero(t, result.Average())
}

func TestSuiteRunAll(t *testing.T) {
	suite := NewSuite()
	suite.Add("fast_test", func() error {
		time.Sleep(1 * time.Millisecond)
		return nil
	})
	suite.Add("slow_test", func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	results := suite.RunAll(3)
	require.Len(t, results, 2)
	assert.Equal(t, results, suite.Results())

	assert.Equal(t, "fast_test", results[0].Name)
	assert.Equal(t, "slow_test", results[1].Name)
	assert.Greater(t, results[1].Duration, results[0].Duration)

	var buf bytes.Buffer
	suite.PrintResults(&buf)
	assert.Contains(t, buf.String(), "Benchmark Results:")
	assert.Contains(t, buf.String(), "slow_test: 3 iterations")
}

func TestParseSizes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []Size
		wantErr bool
	}{
		{"single", "640x480", []Size{{640, 480}}, false},
		{"list with spaces", "320x240, 1280x720", []Size{{320, 240}, {1280, 720}}, false},
		{"trailing comma", "320x240,", []Size{{320, 240}}, false},
		{"empty", "", nil, true},
		{"garbage", "big", nil, true},
		{"zero", "0x480", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSizes(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageSuite(t *testing.T) {
	suite, err := StageSuite(lanes.DefaultConfig(), []Size{{160, 120}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Gray_160x120", "Blur_160x120", "Mask_160x120",
		"Edges_160x120", "Hough_160x120", "Detect_160x120",
	}, suite.Names())

	for _, r := range suite.RunAll(1) {
		require.NoError(t, r.Error, r.Name)
		assert.Equal(t, 1, r.Iterations)
	}
}

func TestStageSuite_InvalidConfig(t *testing.T) {
	cfg := lanes.DefaultConfig()
	cfg.Hough.Threshold = 0
	_, err := StageSuite(cfg, []Size{{160, 120}})
	require.Error(t, err)
}

func TestSequentialVsParallel(t *testing.T) {
	b := NewSequentialVsParallel(pipeline.DefaultConfig(), 3, 2)
	results, err := b.Run(context.Background(), []Size{{160, 120}}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.NoError(t, r.Sequential.Error)
	require.NoError(t, r.Parallel.Error)
	assert.Equal(t, 3, r.Frames)
	assert.Equal(t, 2, r.Workers)
	assert.Positive(t, r.SpeedupFactor)
	assert.Equal(t, results, b.Results())

	var out bytes.Buffer
	b.PrintDetailedResults(&out)
	assert.Contains(t, out.String(), "Overall Speedup")
	assert.Contains(t, out.String(), "160x120 x3")

	var csv bytes.Buffer
	require.NoError(t, WriteCSV(&csv, results))
	lines := strings.Split(strings.TrimSpace(csv.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "160x120,3,2,"))
}

func TestSequentialVsParallel_NoResults(t *testing.T) {
	b := NewSequentialVsParallel(pipeline.DefaultConfig(), 0, 0)
	var out bytes.Buffer
	b.PrintDetailedResults(&out)
	assert.Contains(t, out.String(), "No benchmark results available")
}
