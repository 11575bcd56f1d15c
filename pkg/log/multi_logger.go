package log

// NewMultiLogger fans events out to every given logger, typically a CBOR
// file sink plus a console adapter. Nil loggers are dropped; a fan-out of
// one collapses to the logger itself.
func NewMultiLogger(loggers ...Logger) Logger {
	kept := make(multiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	switch len(kept) {
	case 0:
		return NoopLogger{}
	case 1:
		return kept[0]
	}
	return kept
}

type multiLogger []Logger

func (m multiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}
