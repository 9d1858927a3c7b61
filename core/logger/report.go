package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var logEntry LogEntry
		if err := logEntry.UnmarshalJSON(rawEntry); err != nil {
			return err
		}

		handler(&logEntry)
	}
	return nil
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		Errors: ErrorReport{
			Messages: NewPathCounter("kind", "message"),
		},
	}
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	Pipelines PipelineReport `json:"pipeline_report"`
	Jobs      JobReport      `json:"job_report"`
	Errors    ErrorReport    `json:"error_report"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++
	if le.SessionID != "" {
		r.Sessions.Increment(le.SessionID)
	}

	switch le.Event {
	case EventPipelineStart:
		r.Pipelines.update(le)
	case EventJobStart, EventJobDone, EventForeground:
		r.Jobs.update(le)
	case EventCommandError:
		r.Errors.update(le)
	default:
		r.InvalidEntries.Increment(fmt.Sprintf("%q", le.Event))
	}
}

type PipelineReport struct {
	Count      int `json:"count"`
	Background int `json:"background"`
	// Number of pipelines by stage count.
	Stages StrCounter `json:"stages"`
	// Command lines and their counts.
	Commands StrCounter `json:"commands"`
}

func (r *PipelineReport) update(le *LogEntry) {
	r.Count++
	if le.GetBool("background") {
		r.Background++
	}
	r.Stages.Increment(strconv.Itoa(le.GetInt("stages")))
	r.Commands.Increment(le.GetString("command"))
}

type JobReport struct {
	Started      int `json:"started"`
	Done         int `json:"done"`
	Foregrounded int `json:"foregrounded"`
	// Names of background jobs and their counts.
	Names StrCounter `json:"names"`
}

func (r *JobReport) update(le *LogEntry) {
	switch le.Event {
	case EventJobStart:
		r.Started++
		r.Names.Increment(le.GetString("name"))
	case EventJobDone:
		r.Done++
	case EventForeground:
		r.Foregrounded++
	}
}

type ErrorReport struct {
	Count    int          `json:"count"`
	Kinds    StrCounter   `json:"kinds"`
	Messages *PathCounter `json:"messages"`
}

func (r *ErrorReport) update(le *LogEntry) {
	r.Count++
	r.Kinds.Increment(le.GetString("kind"))
	if r.Messages == nil {
		r.Messages = NewPathCounter("kind", "message")
	}
	r.Messages.Increment(le.GetString("kind"), le.GetString("message"))
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for the given key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of string tuples seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	out := []Count{}
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}
