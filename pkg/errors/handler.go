package errors

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

var active = struct {
	sync.RWMutex
	h ErrorHandler
}{h: &LogHandler{}}

// SetHandler installs the process-wide handler that receives every reported
// error and panic. Passing nil restores the stderr logger.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	active.Lock()
	active.h = h
	active.Unlock()
}

func currentHandler() ErrorHandler {
	active.RLock()
	h := active.h
	active.RUnlock()
	return h
}

// Report delivers err to the installed handler, stamping the time when the
// caller left it zero. Nil errors are ignored.
func Report(err *BridgeError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	currentHandler().HandleError(err)
}

// ReportPanic delivers a recovered panic to the installed handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	currentHandler().HandlePanic(err)
}

// Recover reports a panic in the deferring function and suppresses it.
// Usage: defer errors.Recover("bridge.Invoke")
func Recover(op string) {
	if r := recover(); r != nil {
		reportRecovered(op, r)
	}
}

// RecoverWithCallback reports a panic like Recover, then hands the panic
// value to fn so the caller can degrade its result.
func RecoverWithCallback(op string, fn func(r any)) {
	if r := recover(); r != nil {
		reportRecovered(op, r)
		if fn != nil {
			fn(r)
		}
	}
}

func reportRecovered(op string, value any) {
	ReportPanic(&PanicError{
		Op:         op,
		Value:      value,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	})
}

// CaptureStack renders the caller's stack, omitting the capture machinery
// itself. Depth is capped; reflective call chains stay shallow.
func CaptureStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(frame.Line))
		sb.WriteByte('\n')
		if !more {
			break
		}
	}
	return sb.String()
}
