package hid

// Keyboard usage IDs (HID Usage Tables, page 0x07).
const (
	KeyNone       = 0x00
	KeyA          = 0x04
	KeyZ          = 0x1D
	Key1          = 0x1E
	Key0          = 0x27
	KeyEnter      = 0x28
	KeyEscape     = 0x29
	KeyBackspace  = 0x2A
	KeyTab        = 0x2B
	KeySpace      = 0x2C
	KeyMinus      = 0x2D
	KeyEqual      = 0x2E
	KeyLeftBrace  = 0x2F
	KeyRightBrace = 0x30
	KeyBackslash  = 0x31
	KeySemicolon  = 0x33
	KeyQuote      = 0x34
	KeyGrave      = 0x35
	KeyComma      = 0x36
	KeyDot        = 0x37
	KeySlash      = 0x38
	KeyCapsLock   = 0x39
	KeyF1         = 0x3A
	KeyF12        = 0x45
	KeyRight      = 0x4F
	KeyLeft       = 0x50
	KeyDown       = 0x51
	KeyUp         = 0x52
)

// punctuation maps US-layout symbols to their key and whether Shift is held.
var punctuation = map[rune]struct {
	key   uint8
	shift bool
}{
	' ': {KeySpace, false}, '\n': {KeyEnter, false}, '\t': {KeyTab, false},
	'-': {KeyMinus, false}, '_': {KeyMinus, true},
	'=': {KeyEqual, false}, '+': {KeyEqual, true},
	'[': {KeyLeftBrace, false}, '{': {KeyLeftBrace, true},
	']': {KeyRightBrace, false}, '}': {KeyRightBrace, true},
	'\\': {KeyBackslash, false}, '|': {KeyBackslash, true},
	';': {KeySemicolon, false}, ':': {KeySemicolon, true},
	'\'': {KeyQuote, false}, '"': {KeyQuote, true},
	'`': {KeyGrave, false}, '~': {KeyGrave, true},
	',': {KeyComma, false}, '<': {KeyComma, true},
	'.': {KeyDot, false}, '>': {KeyDot, true},
	'/': {KeySlash, false}, '?': {KeySlash, true},
	'!': {Key1, true}, '@': {Key1 + 1, true}, '#': {Key1 + 2, true},
	'$': {Key1 + 3, true}, '%': {Key1 + 4, true}, '^': {Key1 + 5, true},
	'&': {Key1 + 6, true}, '*': {Key1 + 7, true}, '(': {Key1 + 8, true},
	')': {Key0, true},
}

// KeyFor returns the modifier byte and key code that type r on a US layout.
func KeyFor(r rune) (mod, key uint8, ok bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return 0, KeyA + uint8(r-'a'), true
	case r >= 'A' && r <= 'Z':
		return ModLeftShift, KeyA + uint8(r-'A'), true
	case r == '0':
		return 0, Key0, true
	case r >= '1' && r <= '9':
		return 0, Key1 + uint8(r-'1'), true
	}
	p, ok := punctuation[r]
	if !ok {
		return 0, 0, false
	}
	if p.shift {
		mod = ModLeftShift
	}
	return mod, p.key, true
}

// Type returns the press and release reports that type s. Runes without a
// key are skipped and returned in skipped.
func Type(s string) (reports []KeyboardReport, skipped []rune) {
	for _, r := range s {
		mod, key, ok := KeyFor(r)
		if !ok {
			skipped = append(skipped, r)
			continue
		}
		press := KeyboardReport{Modifiers: mod}
		press.SetKey(key)
		reports = append(reports, press, KeyboardReport{})
	}
	return reports, skipped
}
