package asyncdb

// Operation names the driver operation an error came from.
type Operation int

const (
	ConnectAction Operation = iota
	QueryAction
	PrepareAction
	ExecuteAction
	FetchAction
	CloseAction
)

func (op Operation) String() string {
	switch op {
	case ConnectAction:
		return "connect"
	case QueryAction:
		return "query"
	case PrepareAction:
		return "prepare"
	case ExecuteAction:
		return "execute"
	case FetchAction:
		return "fetch"
	case CloseAction:
		return "close"
	}
	return "unknown"
}
