package logger

// Adapter can be used as an adapter for logging from other frameworks/libraries
// that only expect a Printf-shaped or Log-shaped sink.
// Just keep adding the required methods to make it function.
type Adapter Logger

func (log *Adapter) Log(msg string) {
	if log == nil {
		return
	}
	(*Logger)(log).Info(msg)
}

func (log *Adapter) Printf(format string, v ...interface{}) {
	if log == nil {
		return
	}
	(*Logger)(log).Sugar().Infof(format, v...)
}
