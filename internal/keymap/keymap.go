// Package keymap holds the logical action names the Input Dispatcher looks
// up against, and the per-mode tables mapping a physical keycode to one
// (spec §4.6, §6). Mode membership is fixed at compile time; only the
// keycode assignment is configurable.
package keymap

// Action is a logical action name. Modes share a vocabulary but each mode's
// table only contains the subset it recognises; an unmapped keycode is a
// no-op, not an error (spec §4.6).
type Action string

const (
	Toggle   Action = "toggle"
	Previous Action = "previous"
	Next     Action = "next"

	PrevTopic Action = "prev-topic"
	NextTopic Action = "next-topic"

	SeekBack Action = "seek-back"
	SeekFwd  Action = "seek-fwd"

	StutterBack Action = "stutter-back"
	StutterFwd  Action = "stutter-fwd"

	LoadLocalExtracts Action = "load-local-extracts"
	StartRecording    Action = "start-recording"
	StopRecording     Action = "stop-recording"

	StartClozing Action = "start-clozing"
	StopClozing  Action = "stop-clozing"

	GetExtractTopic Action = "get-extract-topic"
	GetExtractItems Action = "get-extract-items"
	GetItemExtract  Action = "get-item-extract"

	VolUp   Action = "vol-up"
	VolDown Action = "vol-down"

	SwitchGlobalExtracts Action = "switch-global-extracts"
	SwitchGlobalTopics   Action = "switch-global-topics"

	ArchiveTopic   Action = "archive-topic"
	ArchiveExtract Action = "archive-extract"
	ArchiveItem    Action = "archive-item"

	ToggleToExport Action = "toggle-to-export"
)

// Mode names the five primary/sub modes that own a distinct action table
// (spec §4.5).
type Mode string

const (
	ModeTopic     Mode = "topic"
	ModeRecording Mode = "recording"
	ModeExtract   Mode = "extract"
	ModeClozing   Mode = "clozing"
	ModeItem      Mode = "item"
)

// actions lists, per mode, the logical names recognised there (spec §6's
// keymap table).
var actions = map[Mode][]Action{
	ModeTopic: {
		Toggle, PrevTopic, NextTopic, SeekBack, SeekFwd, LoadLocalExtracts,
		StartRecording, VolUp, VolDown, SwitchGlobalExtracts, ArchiveTopic,
	},
	ModeRecording: {
		StopRecording,
	},
	ModeExtract: {
		Toggle, Previous, Next, StutterBack, StutterFwd, StartClozing,
		GetExtractTopic, GetExtractItems, VolUp, VolDown, ArchiveExtract,
		ToggleToExport, SwitchGlobalTopics,
	},
	ModeClozing: {
		Toggle, StutterBack, StutterFwd, StopClozing,
	},
	ModeItem: {
		Toggle, Previous, Next, ArchiveItem, GetItemExtract, SwitchGlobalTopics,
	},
}

// Table maps a physical keycode to the action it triggers in one mode.
type Table map[int]Action

// Build constructs the table for mode from the configured logical-name to
// keycode assignment, keeping only the entries mode actually recognises.
// Logical names present in keyMap but not used by mode are ignored; logical
// names mode needs but missing from keyMap are simply absent from the
// resulting table (the corresponding key is a no-op until configured).
func Build(mode Mode, keyMap map[string]int) Table {
	table := make(Table)
	for _, action := range actions[mode] {
		code, ok := keyMap[string(action)]
		if !ok {
			continue
		}
		table[code] = action
	}
	return table
}
