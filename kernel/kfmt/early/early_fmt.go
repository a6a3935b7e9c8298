// Package early provides a minimal, allocation-free Printf implementation
// that can be used before the Go allocator and UART console are fully set
// up. It is modeled directly on gopher-os's kernel/kfmt/early package: no
// reflection, no interface-based formatting, just a closed set of verbs
// (%s, %d, %x, %o, %t, %c, %%) wired to a Writer seam.
package early

import "io"

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")

	numFmtBuf [32]byte

	// earlyBuf captures output until SetOutputSink attaches a real console.
	earlyBuf ringBuffer

	// outputSink is where Printf writes once attached; nil means "buffer
	// into earlyBuf only".
	outputSink io.Writer
)

// SetOutputSink attaches w as the Printf destination and flushes whatever
// was buffered in earlyBuf so far into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyBuf)
	}
}

func emit(p []byte) {
	if outputSink != nil {
		outputSink.Write(p)
		return
	}
	earlyBuf.Write(p)
}

// Printf writes a formatted string to the active output sink. See the
// package doc for the supported verb subset. Width is an optional decimal
// number immediately before the verb; strings are left-padded with spaces,
// base-10 integers with spaces, base-16 integers with zeroes.
func Printf(format string, args ...interface{}) {
	var (
		argIndex int
		i        int
		fmtLen   = len(format)
	)

	flush := func(from, to int) {
		if from < to {
			emit([]byte(format[from:to]))
		}
	}

	blockStart := 0
	for i < fmtLen {
		if format[i] != '%' {
			i++
			continue
		}
		flush(blockStart, i)
		i++
		if i >= fmtLen {
			break
		}
		if format[i] == '%' {
			emit([]byte{'%'})
			i++
			blockStart = i
			continue
		}

		width := 0
		for i < fmtLen && format[i] >= '0' && format[i] <= '9' {
			width = width*10 + int(format[i]-'0')
			i++
		}
		if i >= fmtLen {
			break
		}
		verb := format[i]
		i++
		blockStart = i

		if argIndex >= len(args) {
			emit(errMissingArg)
			continue
		}
		arg := args[argIndex]
		argIndex++

		switch verb {
		case 's':
			emitString(arg, width)
		case 'd':
			emitInt(arg, 10, width, false)
		case 'x':
			emitInt(arg, 16, width, true)
		case 'o':
			emitInt(arg, 8, width, false)
		case 't':
			emitBool(arg)
		case 'c':
			emitRune(arg)
		default:
			emit(errNoVerb)
		}
	}
	flush(blockStart, fmtLen)
}

func padLeft(body []byte, width int, pad byte) {
	for i := len(body); i < width; i++ {
		emit([]byte{pad})
	}
	emit(body)
}

func emitString(arg interface{}, width int) {
	switch v := arg.(type) {
	case string:
		padLeft([]byte(v), width, ' ')
	case []byte:
		padLeft(v, width, ' ')
	default:
		emit(errWrongArgType)
	}
}

func emitBool(arg interface{}) {
	v, ok := arg.(bool)
	if !ok {
		emit(errWrongArgType)
		return
	}
	if v {
		emit([]byte("true"))
	} else {
		emit([]byte("false"))
	}
}

func emitRune(arg interface{}) {
	switch v := arg.(type) {
	case byte:
		emit([]byte{v})
	case rune:
		emit([]byte(string(v)))
	default:
		emit(errWrongArgType)
	}
}

func toUint64(arg interface{}) (uint64, bool, bool) {
	switch v := arg.(type) {
	case int:
		return uint64(v), v < 0, true
	case int8:
		return uint64(v), v < 0, true
	case int16:
		return uint64(v), v < 0, true
	case int32:
		return uint64(v), v < 0, true
	case int64:
		return uint64(v), v < 0, true
	case uint:
		return uint64(v), false, true
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	case uintptr:
		return uint64(v), false, true
	}
	return 0, false, false
}

func emitInt(arg interface{}, base int, width int, zeroPad bool) {
	uval, neg, ok := toUint64(arg)
	if !ok {
		emit(errWrongArgType)
		return
	}
	if neg {
		// recover the magnitude of the signed value before formatting
		uval = uint64(-int64(uval))
	}

	pos := len(numFmtBuf)
	if uval == 0 {
		pos--
		numFmtBuf[pos] = '0'
	}
	const digits = "0123456789abcdef"
	for uval > 0 {
		pos--
		numFmtBuf[pos] = digits[uval%uint64(base)]
		uval /= uint64(base)
	}
	if neg {
		pos--
		numFmtBuf[pos] = '-'
	}

	pad := byte(' ')
	if zeroPad {
		pad = '0'
	}
	padLeft(numFmtBuf[pos:], width, pad)
}
