package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeySpace      = " "
	KeyStop       = "s"
	KeyContinuous = "c"
	KeyNewCase    = "n"
	KeyRename     = "r"
	KeyExport     = "e"
	KeyClear      = "x"
	KeyTab        = "tab"
	KeyEsc        = "esc"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyEnter      = "enter"
)
