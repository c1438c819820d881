package job

import "context"

type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloadJob runs Reload on a schedule. It serves both the library sources
// and the cached trust configuration.
type ReloadJob struct {
	name   string
	target Reloader
}

func NewLibraryReloadJob(target Reloader) *ReloadJob {
	return &ReloadJob{name: "library_reload", target: target}
}

func NewAccessReloadJob(target Reloader) *ReloadJob {
	return &ReloadJob{name: "access_reload", target: target}
}

func (j *ReloadJob) Name() string {
	return j.name
}

func (j *ReloadJob) Run(ctx context.Context) error {
	return j.target.Reload(ctx)
}
