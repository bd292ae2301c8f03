package models

// Status texts written by the job machinery. Progress texts are free-form.
const (
	StatusQueued  = "Queued"
	StatusUnknown = "Unknown"
	StatusDone    = "Done!"
)

// Status is the pollable snapshot of one job.
type Status struct {
	Status   string  `json:"status"`
	Progress *int    `json:"progress,omitempty"`
	Total    *int    `json:"total,omitempty"`
	Done     bool    `json:"done"`
	Filename *string `json:"filename,omitempty"`
}

// Succeeded reports whether the job finished with a downloadable artifact.
func (s Status) Succeeded() bool {
	return s.Done && s.Filename != nil
}

// Clone returns a deep copy so readers never share pointers with the registry.
func (s Status) Clone() Status {
	out := Status{Status: s.Status, Done: s.Done}
	if s.Progress != nil {
		v := *s.Progress
		out.Progress = &v
	}
	if s.Total != nil {
		v := *s.Total
		out.Total = &v
	}
	if s.Filename != nil {
		v := *s.Filename
		out.Filename = &v
	}
	return out
}

// Update is a partial mutation of a Status. Nil fields are left untouched.
type Update struct {
	Status   string
	Progress *int
	Total    *int
	Done     bool
	Filename *string
}

// Apply merges u into s. A filename implies completion.
func (u Update) Apply(s Status) Status {
	if u.Status != "" {
		s.Status = u.Status
	}
	if u.Progress != nil {
		v := *u.Progress
		s.Progress = &v
	}
	if u.Total != nil {
		v := *u.Total
		s.Total = &v
	}
	if u.Filename != nil {
		v := *u.Filename
		s.Filename = &v
		s.Done = true
	}
	if u.Done {
		s.Done = true
	}
	return s
}

// Message builds a status-only update.
func Message(status string) Update {
	return Update{Status: status}
}

// Progressed builds an update carrying progress counters.
func Progressed(status string, progress, total int) Update {
	return Update{Status: status, Progress: &progress, Total: &total}
}

// Failed builds a terminal update without an artifact.
func Failed(status string) Update {
	return Update{Status: status, Done: true}
}

// Finished builds a terminal update carrying the artifact name.
func Finished(filename string) Update {
	return Update{Status: StatusDone, Done: true, Filename: &filename}
}
