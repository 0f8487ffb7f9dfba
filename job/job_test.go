package job

import (
	"testing"
	"time"

	"github.com/stackjob/stackjob/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	testCases := []struct {
		description string
		options     Options
		expectError bool
	}{
		{
			description: "provision with template path",
			options:     Options{Action: ActionProvision, TemplatePath: "templates/vpc"},
		},
		{
			description: "provision with repository pair",
			options:     Options{Action: ActionProvision, RepositoryURL: "https://example.com/infra.git", TemplateRelPath: "vpc"},
		},
		{
			description: "reconfigure needs stack id",
			options:     Options{Action: ActionReconfigure, TemplatePath: "templates/vpc"},
			expectError: true,
		},
		{
			description: "retirement with stack id",
			options:     Options{Action: ActionRetirement, TemplatePath: "templates/vpc", StackID: "st-1"},
		},
		{
			description: "missing template addressing",
			options:     Options{Action: ActionProvision},
			expectError: true,
		},
		{
			description: "repository without rel path",
			options:     Options{Action: ActionProvision, RepositoryURL: "https://example.com/infra.git"},
			expectError: true,
		},
		{
			description: "unknown action",
			options:     Options{Action: ActionKind("destroy"), TemplatePath: "templates/vpc"},
			expectError: true,
		},
	}
	for _, testCase := range testCases {
		err := testCase.options.Validate()
		if testCase.expectError {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestOptionsMergedInputVars(t *testing.T) {
	options := Options{
		InputVars: map[string]interface{}{"region": "us-east-1", "size": "small"},
		ExtraVars: map[string]interface{}{"size": "large", "zone": "a"},
	}
	merged := options.MergedInputVars()
	assert.Equal(t, map[string]interface{}{"region": "us-east-1", "size": "large", "zone": "a"}, merged)
	// source maps untouched
	assert.Equal(t, "small", options.InputVars["size"])
}

func TestTimeoutExceeded(t *testing.T) {
	base := time.Now()
	clock.NowFunc = func() time.Time { return base }
	defer func() { clock.NowFunc = time.Now }()

	aJob := New("job-1", Options{Action: ActionProvision, TemplatePath: "t", Timeout: time.Minute})
	assert.False(t, aJob.TimeoutExceeded(), "not started yet")

	aJob.MarkStarted()
	assert.False(t, aJob.TimeoutExceeded())

	clock.NowFunc = func() time.Time { return base.Add(2 * time.Minute) }
	assert.True(t, aJob.TimeoutExceeded())

	aJob.Options.Timeout = 0
	assert.False(t, aJob.TimeoutExceeded(), "zero timeout never expires")
}

func TestJobClone(t *testing.T) {
	aJob := New("job-1", Options{
		Action:    ActionProvision,
		InputVars: map[string]interface{}{"region": "us-east-1"},
		EnvVars:   map[string]string{"HTTP_PROXY": "proxy"},
	})
	aJob.MarkStarted()

	clone := aJob.Clone()
	require.NotSame(t, aJob, clone)
	clone.Options.InputVars["region"] = "eu-west-1"
	clone.Options.EnvVars["HTTP_PROXY"] = "other"
	*clone.StartedOn = clone.StartedOn.Add(time.Hour)

	assert.Equal(t, "us-east-1", aJob.Options.InputVars["region"])
	assert.Equal(t, "proxy", aJob.Options.EnvVars["HTTP_PROXY"])
	assert.NotEqual(t, aJob.StartedOn, clone.StartedOn)
}
