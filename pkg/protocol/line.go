package protocol

import (
	"fmt"
	"strconv"
)

// LineBufferSize is the longest accepted line, excluding the terminator.
const LineBufferSize = 80

// StatusCode is the numeric code reported as "error:N".
type StatusCode int

// Status codes.
const (
	StatusOK                    StatusCode = 0
	StatusExpectedCommandLetter StatusCode = 1
	StatusBadNumberFormat       StatusCode = 2
	StatusInvalidStatement      StatusCode = 3
	StatusIdleError             StatusCode = 8
	StatusSystemGCLock          StatusCode = 9
	StatusOverflow              StatusCode = 11
	StatusInvalidJogCommand     StatusCode = 16
	StatusUnsupportedCommand    StatusCode = 20
)

// Error implements error.
func (c StatusCode) Error() string {
	return fmt.Sprintf("error:%d", int(c))
}

type commentMode int

const (
	commentNone commentMode = iota
	commentParen
	commentLine
)

// lineAssembler builds a normalized line out of data bytes: whitespace and
// control characters are dropped, comments removed and letters upper-cased.
type lineAssembler struct {
	buf      []byte
	comment  commentMode
	overflow bool
}

// feed adds one byte. When b terminates a line, the line is returned with
// done set, and err set to StatusOverflow if it did not fit.
func (a *lineAssembler) feed(b byte) (line string, done bool, err error) {
	if b == '\n' || b == '\r' {
		line, overflow := string(a.buf), a.overflow
		a.reset()
		if overflow {
			return "", true, StatusOverflow
		}
		return line, true, nil
	}
	switch a.comment {
	case commentParen:
		if b == ')' {
			a.comment = commentNone
		}
		return "", false, nil
	case commentLine:
		return "", false, nil
	}
	switch {
	case b <= ' ' || b >= 0x7f:
		return "", false, nil
	case b == '(':
		a.comment = commentParen
		return "", false, nil
	case b == ';':
		a.comment = commentLine
		return "", false, nil
	case a.overflow:
		return "", false, nil
	case len(a.buf) >= LineBufferSize:
		a.overflow = true
		return "", false, nil
	}
	if b >= 'a' && b <= 'z' {
		b -= 'a' - 'A'
	}
	a.buf = append(a.buf, b)
	return "", false, nil
}

func (a *lineAssembler) reset() {
	a.buf = a.buf[:0]
	a.comment = commentNone
	a.overflow = false
}

type word struct {
	letter byte
	value  float64
}

// parseWords splits a normalized line like "G1X10.5F500" into words.
func parseWords(line string) ([]word, error) {
	var words []word
	for i := 0; i < len(line); {
		letter := line[i]
		if letter < 'A' || letter > 'Z' {
			return nil, StatusExpectedCommandLetter
		}
		i++
		start := i
		for i < len(line) && (line[i] == '-' || line[i] == '+' || line[i] == '.' || (line[i] >= '0' && line[i] <= '9')) {
			i++
		}
		if start == i {
			return nil, StatusBadNumberFormat
		}
		v, err := strconv.ParseFloat(line[start:i], 64)
		if err != nil {
			return nil, StatusBadNumberFormat
		}
		words = append(words, word{letter: letter, value: v})
	}
	return words, nil
}
