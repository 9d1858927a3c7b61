package logger

// LogType is an event that can be stored in the event log.
type LogType interface {
	// EventName returns the name the event is stored under.
	EventName() string
	// Fields returns the attributes of the event.
	Fields() map[string]interface{}
}

const (
	EventPipelineStart = "pipeline_start"
	EventJobStart      = "job_start"
	EventJobDone       = "job_done"
	EventForeground    = "foreground"
	EventCommandError  = "command_error"
)

// PipelineStart is recorded every time a pipeline is launched.
type PipelineStart struct {
	Command    string
	Stages     int
	Background bool
}

func (PipelineStart) EventName() string { return EventPipelineStart }

func (e PipelineStart) Fields() map[string]interface{} {
	return map[string]interface{}{
		"command":    e.Command,
		"stages":     e.Stages,
		"background": e.Background,
	}
}

// JobStart is recorded when a background process is added to the job table.
type JobStart struct {
	JobID int
	Pid   int
	Name  string
}

func (JobStart) EventName() string { return EventJobStart }

func (e JobStart) Fields() map[string]interface{} {
	return jobFields(e.JobID, e.Pid, e.Name)
}

// JobDone is recorded when a background job is reaped.
type JobDone struct {
	JobID int
	Pid   int
	Name  string
}

func (JobDone) EventName() string { return EventJobDone }

func (e JobDone) Fields() map[string]interface{} {
	return jobFields(e.JobID, e.Pid, e.Name)
}

// Foreground is recorded when the user waits on a background job.
type Foreground struct {
	JobID int
	Pid   int
	Name  string
}

func (Foreground) EventName() string { return EventForeground }

func (e Foreground) Fields() map[string]interface{} {
	return jobFields(e.JobID, e.Pid, e.Name)
}

// CommandError is recorded when a command can't be run.
type CommandError struct {
	// Kind holds the class of error e.g. "redirection" or "launch".
	Kind    string
	Message string
}

func (CommandError) EventName() string { return EventCommandError }

func (e CommandError) Fields() map[string]interface{} {
	return map[string]interface{}{
		"kind":    e.Kind,
		"message": e.Message,
	}
}

func jobFields(id, pid int, name string) map[string]interface{} {
	return map[string]interface{}{
		"job_id": id,
		"pid":    pid,
		"name":   name,
	}
}
