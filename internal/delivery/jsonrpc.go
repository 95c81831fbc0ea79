package delivery

// JSON-RPC constants of the XBMC notification call.
const (
	JSONRPCVersion   = "2.0"
	MethodShowNotify = "GUI.ShowNotification"
	DefaultTitle     = "Dog says:"
	DefaultImage     = "info"
)

// Request is the JSON-RPC envelope. Field order matches the wire format
// XBMC documents.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  Params `json:"params"`
}

// Params are the GUI.ShowNotification arguments.
type Params struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Image   string `json:"image"`
}

// NewShowNotification builds the request displaying message on the remote GUI.
func NewShowNotification(title, message, image string) Request {
	return Request{
		JSONRPC: JSONRPCVersion,
		Method:  MethodShowNotify,
		ID:      1,
		Params: Params{
			Title:   title,
			Message: message,
			Image:   image,
		},
	}
}

// Endpoint returns the URL receiving the call for a server base URL.
func Endpoint(server string) string {
	return server + "/jsonrpc?" + MethodShowNotify
}
