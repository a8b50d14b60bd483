package issuesheet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coder/issuesheet/ghapi"
)

// blockingWriter tracks how many writes overlap.
type blockingWriter struct {
	Logged
	active, peak atomic.Int32
}

func (b *blockingWriter) WriteIssues(context.Context, []Issue, SheetProps) error {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return nil
}

func testJob(repo string) Job {
	return Job{Repository: repo, SheetURL: testSheet}
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{issues: []Issue{buildIssue("1"), buildIssue("2")}}
	writer := &fakeWriter{}
	var repos []string
	log, buf := recordingLogger()
	r := &Runner{
		NewExporter: func(_ context.Context, repo string) (*Exporter, error) {
			repos = append(repos, repo)
			return &Exporter{Reader: reader, Writer: writer}, nil
		},
	}
	r.SetLogger(log)

	job := testJob(testRepo)
	job.Types = "pr"
	job.DeltaUpdate = true
	n, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{testRepo}, repos)
	assert.Equal(t, []IssueSearchCriteria{{Repo: testRepo, Types: []IssueType{TypePullRequest}}}, reader.criteria)
	assert.Equal(t, []SheetProps{{SheetURL: testSheet, DeltaUpdate: true}}, writer.props)

	out := buf.String()
	assert.Contains(t, out, "export finished")
	assert.Contains(t, out, "run=")
	assert.Contains(t, out, "repo="+testRepo)
}

func TestRunnerRunInvalidTypes(t *testing.T) {
	t.Parallel()

	r := &Runner{
		NewExporter: func(context.Context, string) (*Exporter, error) {
			t.Fatal("exporter must not be built")
			return nil, nil
		},
	}
	r.SetLogger(discardLogger())

	job := testJob(testRepo)
	job.Types = "wiki"
	_, err := r.Run(context.Background(), job)
	require.ErrorIs(t, err, ErrInvalidIssueType)
}

func TestRunnerRunExporterFails(t *testing.T) {
	t.Parallel()

	boom := errors.New("no installation")
	r := &Runner{
		NewExporter: func(context.Context, string) (*Exporter, error) {
			return nil, boom
		},
	}
	log, buf := recordingLogger()
	r.SetLogger(log)

	_, err := r.Run(context.Background(), testJob(testRepo))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestRunnerRunAll(t *testing.T) {
	t.Parallel()

	boom := errors.New("quota exceeded")
	r := &Runner{
		NewExporter: func(_ context.Context, repo string) (*Exporter, error) {
			writer := &fakeWriter{}
			if repo == "org/broken" {
				writer.err = boom
			}
			return &Exporter{Reader: &fakeReader{issues: []Issue{buildIssue("1")}}, Writer: writer}, nil
		},
	}
	r.SetLogger(discardLogger())

	results, err := r.RunAll(context.Background(), []Job{
		testJob("org/broken"),
		testJob(testRepo),
	})
	require.ErrorIs(t, err, boom)
	require.Len(t, results, 2)
	assert.Equal(t, "org/broken", results[0].Repository)
	assert.Zero(t, results[0].Count)
	assert.Contains(t, results[0].Error, "quota exceeded")
	assert.Equal(t, Result{Repository: testRepo, SheetURL: testSheet, Count: 1}, results[1])
}

func TestRunnerRunAllCanceled(t *testing.T) {
	t.Parallel()

	r := &Runner{
		NewExporter: func(context.Context, string) (*Exporter, error) {
			t.Fatal("canceled runs must not start")
			return nil, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.RunAll(ctx, []Job{testJob(testRepo)})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestRunnerSerializesRuns(t *testing.T) {
	t.Parallel()

	writer := &blockingWriter{}
	r := &Runner{
		NewExporter: func(context.Context, string) (*Exporter, error) {
			return &Exporter{Reader: &fakeReader{}, Writer: writer}, nil
		},
	}
	r.SetLogger(discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Run(context.Background(), testJob(testRepo))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, writer.peak.Load())
}

func TestExporterFor(t *testing.T) {
	t.Parallel()

	newExporter := ExporterFor(&ghapi.Clients{Token: "ghp_test"}, &fakeOpener{tab: &fakeTab{}})
	e, err := newExporter(context.Background(), testRepo)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.IsType(t, &GitHubReader{}, e.Reader)
	assert.IsType(t, &SheetWriter{}, e.Writer)
}
