package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace = 32  // Spacebar (ASCII), pauses and resumes the effect clock
	KeyR     = 82  // R key (ASCII), reloads every effect's shaders
	KeyP     = 80  // P key (ASCII), toggles the profiler
	KeyEsc   = 256 // Escape key (GLFW), handled by the window itself

	KeyMinus = 45 // - key (ASCII), slows the effect clock down
	KeyEqual = 61 // = key (ASCII), speeds the effect clock up
	Key0     = 48 // 0 key (ASCII), resets the effect clock

	Key1 = 49 // 1 key (ASCII)
	Key2 = 50 // 2 key (ASCII)
	Key3 = 51 // 3 key (ASCII)
	Key4 = 52 // 4 key (ASCII)
	Key5 = 53 // 5 key (ASCII)
	Key6 = 54 // 6 key (ASCII)
	Key7 = 55 // 7 key (ASCII)
	Key8 = 56 // 8 key (ASCII)
	Key9 = 57 // 9 key (ASCII)
)

// LayerKey maps the number keys 1 through 9 to a layer index 0 through 8.
//
// Parameters:
//   - keyCode: the virtual key code
//
// Returns:
//   - int: the layer index
//   - bool: false if keyCode is not one of the number keys 1 through 9
func LayerKey(keyCode uint32) (int, bool) {
	if keyCode < Key1 || keyCode > Key9 {
		return 0, false
	}
	return int(keyCode - Key1), true
}
