package input

import "strings"

// Key names a keyboard key. Named keys use the DOM KeyboardEvent.key
// values; printable keys are the character itself.
type Key string

// Named keys.
const (
	KeyBackspace  Key = "Backspace"
	KeyTab        Key = "Tab"
	KeyEnter      Key = "Enter"
	KeyShift      Key = "Shift"
	KeyControl    Key = "Control"
	KeyAlt        Key = "Alt"
	KeyMeta       Key = "Meta"
	KeyCapsLock   Key = "CapsLock"
	KeyEscape     Key = "Escape"
	KeySpace      Key = " "
	KeyPageUp     Key = "PageUp"
	KeyPageDown   Key = "PageDown"
	KeyEnd        Key = "End"
	KeyHome       Key = "Home"
	KeyArrowLeft  Key = "ArrowLeft"
	KeyArrowUp    Key = "ArrowUp"
	KeyArrowRight Key = "ArrowRight"
	KeyArrowDown  Key = "ArrowDown"
	KeyInsert     Key = "Insert"
	KeyDelete     Key = "Delete"
)

var namedCodes = map[Key]uint8{
	KeyBackspace:  8,
	KeyTab:        9,
	KeyEnter:      13,
	KeyShift:      16,
	KeyControl:    17,
	KeyAlt:        18,
	KeyCapsLock:   20,
	KeyEscape:     27,
	KeySpace:      32,
	KeyPageUp:     33,
	KeyPageDown:   34,
	KeyEnd:        35,
	KeyHome:       36,
	KeyArrowLeft:  37,
	KeyArrowUp:    38,
	KeyArrowRight: 39,
	KeyArrowDown:  40,
	KeyInsert:     45,
	KeyDelete:     46,
	// Some browsers report Shift+Alt as Meta.
	KeyMeta: 18,
}

var punctuationCodes = map[rune]uint8{
	';': 186, '=': 187, ',': 188, '-': 189, '.': 190, '/': 191, '`': 192,
	'[': 219, '\\': 220, ']': 221, '\'': 222,
}

// Code returns the legacy key code of k, the bit used for k in a KeyMask.
// Letters are case-insensitive. Unknown keys map to 0.
func (k Key) Code() uint8 {
	if c, ok := namedCodes[k]; ok {
		return c
	}
	if len(k) > 1 && k[0] == 'F' {
		var n int
		for _, r := range k[1:] {
			if r < '0' || r > '9' {
				return 0
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 24 {
			return uint8(111 + n)
		}
		return 0
	}
	runes := []rune(string(k))
	if len(runes) != 1 {
		return 0
	}
	r := []rune(strings.ToUpper(string(runes[0])))[0]
	switch {
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return uint8(r)
	}
	if c, ok := punctuationCodes[r]; ok {
		return c
	}
	return 0
}
