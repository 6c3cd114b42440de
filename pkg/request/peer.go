package request

import (
	"net"
	"strconv"
)

// Requestor returns the peer address in presentation form, resolved from
// the connection on first use.
func (r *Request) Requestor() string {
	r.loadRequestor()
	return r.requestor
}

// RequestorPort returns the peer port, resolved from the connection on
// first use.
func (r *Request) RequestorPort() uint16 {
	r.loadRequestor()
	return r.requestorPort
}

// SetRequestor overrides the peer address. The connection is no longer
// consulted afterwards.
func (r *Request) SetRequestor(addr string) {
	r.loadRequestor()
	r.requestor = addr
}

// SetRequestorPort overrides the peer port.
func (r *Request) SetRequestorPort(port uint16) {
	r.loadRequestor()
	r.requestorPort = port
}

func (r *Request) loadRequestor() {
	if r.requestorLoaded {
		return
	}
	r.requestorLoaded = true
	if r.conn == nil {
		return
	}
	r.requestor, r.requestorPort = splitAddr(r.conn.PeerAddr())
}

func splitAddr(addr net.Addr) (string, uint16) {
	switch a := addr.(type) {
	case nil:
		return "", 0
	case *net.TCPAddr:
		if a == nil {
			return "", 0
		}
		return a.IP.String(), uint16(a.Port)
	case *net.UDPAddr:
		if a == nil {
			return "", 0
		}
		return a.IP.String(), uint16(a.Port)
	}

	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	n, _ := strconv.ParseUint(port, 10, 16)
	return host, uint16(n)
}
