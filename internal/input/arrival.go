package input

import "strings"

// deviceKind classifies a hot-plugged input device node by its declared
// name. Only a case-insensitive device-name substring is matched; devices
// are not matched by MAC address.
type deviceKind int

const (
	kindOther deviceKind = iota
	kindController
	kindHeadphones
)

func classify(deviceName, controllerName, headphonesName string) deviceKind {
	lower := strings.ToLower(deviceName)
	if controllerName != "" && strings.Contains(lower, strings.ToLower(controllerName)) {
		return kindController
	}
	if headphonesName != "" && strings.Contains(lower, strings.ToLower(headphonesName)) {
		return kindHeadphones
	}
	return kindOther
}

// controllerArrivalCount is the number of logical event-device nodes one
// physical game-pad registers under Linux's input subsystem (spec §4.6).
const controllerArrivalCount = 4

// arrivalTracker holds the pure hotplug-counting state the spec describes,
// decoupled from fsnotify and device I/O so it can be tested without
// touching /dev or /sys.
type arrivalTracker struct {
	controllerName, headphonesName string

	controllerAdds      int
	controllerConnected bool
	headphonesPresent   bool
}

func newArrivalTracker(controllerName, headphonesName string) *arrivalTracker {
	return &arrivalTracker{controllerName: controllerName, headphonesName: headphonesName}
}

// onAdd records one device-node arrival and reports which audio cue (if
// any) the caller should fire.
func (t *arrivalTracker) onAdd(deviceName string) (kind deviceKind, announceController, announceHeadphones bool) {
	kind = classify(deviceName, t.controllerName, t.headphonesName)
	switch kind {
	case kindController:
		t.controllerAdds++
		if t.controllerAdds == controllerArrivalCount && !t.controllerConnected {
			t.controllerConnected = true
			announceController = true
		}
	case kindHeadphones:
		t.headphonesPresent = true
		announceHeadphones = true
	}
	return kind, announceController, announceHeadphones
}

// onRemove records a device-node departure, previously classified at add
// time (the node is gone by the time Remove fires, so its name can no
// longer be read from sysfs). Reports whether the audio daemon needs a
// restart (spec §4.6: headphone removal re-initialises the BT audio path).
func (t *arrivalTracker) onRemove(kind deviceKind) (restartAudio bool) {
	switch kind {
	case kindController:
		t.controllerAdds = 0
		t.controllerConnected = false
	case kindHeadphones:
		t.headphonesPresent = false
		return true
	}
	return false
}

func (t *arrivalTracker) headphones() bool {
	return t.headphonesPresent
}
