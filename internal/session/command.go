package session

import (
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/inspection"
)

// CommandKind enumerates every mutation the session accepts
type CommandKind int

const (
	CmdSetHeader CommandKind = iota + 1
	CmdSelectStyle
	CmdAddRow
	CmdRequestDeleteRow
	CmdRequestResetRow
	CmdSetStatus
	CmdSetScore
	CmdSetNote
	CmdSetDescription
	CmdSetPhoto
	CmdClearPhoto
	CmdTogglePicker
	CmdCloseAllPickers
	CmdCheckTag
	CmdSetPickerTags
	CmdSave
	CmdRequestDeleteRecord
	CmdResolve
)

var commandNames = map[CommandKind]string{
	CmdSetHeader:           "set_header",
	CmdSelectStyle:         "select_style",
	CmdAddRow:              "add_row",
	CmdRequestDeleteRow:    "request_delete_row",
	CmdRequestResetRow:     "request_reset_row",
	CmdSetStatus:           "set_status",
	CmdSetScore:            "set_score",
	CmdSetNote:             "set_note",
	CmdSetDescription:      "set_description",
	CmdSetPhoto:            "set_photo",
	CmdClearPhoto:          "clear_photo",
	CmdTogglePicker:        "toggle_picker",
	CmdCloseAllPickers:     "close_all_pickers",
	CmdCheckTag:            "check_tag",
	CmdSetPickerTags:       "set_picker_tags",
	CmdSave:                "save",
	CmdRequestDeleteRecord: "request_delete_record",
	CmdResolve:             "resolve",
}

func (k CommandKind) String() string {
	if n, ok := commandNames[k]; ok {
		return n
	}
	return "unknown"
}

// Command is one user action. Only the fields relevant to Kind are read.
type Command struct {
	Kind CommandKind

	RowID string
	Field string // header field name, or "max"/"actual" for scores
	Value string

	Status     inspection.Status
	Tag        string
	On         bool
	Tags       []string
	Attachment *inspection.Attachment

	RecordID string

	Ticket    uint64
	Confirmed bool
}

// Result reports what a command changed. Fields not touched by the command are zero.
type Result struct {
	Row          *inspection.RowItem     `json:"row,omitempty"`
	Header       *inspection.Header      `json:"header,omitempty"`
	Score        *inspection.ScoreResult `json:"score,omitempty"`
	Picker       *PickerView             `json:"picker,omitempty"`
	Closed       []string                `json:"closed,omitempty"`
	Confirmation *PendingConfirmation    `json:"confirmation,omitempty"`
	Resolved     ConfirmKind             `json:"resolved,omitempty"`
	Record       *datastore.Record       `json:"record,omitempty"`
	Summary      *inspection.Summary     `json:"summary,omitempty"`
}

// PickerView is the client-facing state of one row's picker
type PickerView struct {
	RowID   string                 `json:"rowId"`
	State   inspection.PickerState `json:"state"`
	Pending []string               `json:"pending"`
	Tags    []string               `json:"tags"`    // committed tags on the row
	Visible []string               `json:"visible"` // vocabulary entries matching the filter
}

// View is a read-only snapshot of the whole session
type View struct {
	Header       inspection.Header                 `json:"header"`
	Rows         []inspection.RowItem              `json:"rows"`
	Summary      inspection.Summary                `json:"summary"`
	Pickers      map[string]inspection.PickerState `json:"pickers"`
	TaggingRow   string                            `json:"taggingRow,omitempty"`
	Confirmation *PendingConfirmation              `json:"confirmation,omitempty"`
	Dirty        bool                              `json:"dirty"`
}
