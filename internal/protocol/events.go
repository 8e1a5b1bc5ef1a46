package protocol

import "fmt"

// Task lifecycle event types carried in OBS events.
const (
	EventTaskDone = "TASK_DONE"
	EventTaskFail = "TASK_FAIL"
)

// TaskEvent is the decoded form of a TASK_DONE / TASK_FAIL event.
type TaskEvent struct {
	Tick    uint64
	TaskID  string
	Done    bool
	Kind    string
	Code    string
	Message string
}

// DecodeTaskEvent extracts task completion info from a raw event. ok is false
// for events that are not task lifecycle events.
func DecodeTaskEvent(ev Event) (TaskEvent, bool) {
	typ, _ := ev["type"].(string)
	if typ != EventTaskDone && typ != EventTaskFail {
		return TaskEvent{}, false
	}
	id, _ := ev["task_id"].(string)
	if id == "" {
		return TaskEvent{}, false
	}
	out := TaskEvent{TaskID: id, Done: typ == EventTaskDone}
	out.Kind, _ = ev["kind"].(string)
	out.Code, _ = ev["code"].(string)
	out.Message, _ = ev["message"].(string)
	switch t := ev["t"].(type) {
	case float64:
		out.Tick = uint64(t)
	case uint64:
		out.Tick = t
	case int:
		out.Tick = uint64(t)
	}
	return out, true
}

func (e TaskEvent) String() string {
	if e.Done {
		return fmt.Sprintf("%s done", e.TaskID)
	}
	return fmt.Sprintf("%s failed (%s)", e.TaskID, CodeText(e.Code, e.Message))
}
