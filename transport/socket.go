package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/mdlayher/vsock"
)

// frame is the on-wire unit of the socket transport: newline-delimited
// JSON, one frame per message. Op is "sub" (register interest in a
// topic) or "pub" (deliver a payload on a topic).
type frame struct {
	Op      string `json:"op"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload,omitempty"`
}

const (
	opSubscribe = "sub"
	opPublish   = "pub"
)

// Listen opens a TCP listener for a Hub.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// ListenVsock opens a vsock listener for a Hub, for deployments where
// the auctioneer runs inside a VM or enclave and fleets connect from
// the host.
func ListenVsock(port uint32) (net.Listener, error) {
	return vsock.Listen(port, nil)
}

// Hub relays published frames among connected peers. Every peer that
// subscribed to a frame's topic receives it, including the publisher
// itself, mirroring the loopback behavior of Bus.
type Hub struct {
	listener net.Listener
	maxConns int

	mu    sync.Mutex
	peers map[*hubPeer]struct{}
}

type hubPeer struct {
	conn    net.Conn
	writeMu sync.Mutex
	enc     *json.Encoder
	topics  map[string]struct{}
}

// NewHub creates a hub serving connections from the listener. maxConns
// bounds concurrent peers; further connections are rejected outright.
func NewHub(listener net.Listener, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 64
	}
	return &Hub{
		listener: listener,
		maxConns: maxConns,
		peers:    make(map[*hubPeer]struct{}),
	}
}

// Serve accepts and serves peers until the listener is closed.
func (h *Hub) Serve() error {
	log.Printf("INFO: transport hub listening on %s", h.listener.Addr())
	semaphore := make(chan struct{}, h.maxConns)
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			return fmt.Errorf("accept peer connection: %w", err)
		}

		// Acquire peer slot, immediate rejection if full.
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				h.servePeer(c)
			}(conn)
		default:
			log.Printf("INFO: no peer slots available, rejecting connection from %s", conn.RemoteAddr())
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: failed to close rejected connection: %v", err)
			}
		}
	}
}

// Close stops accepting and disconnects all peers.
func (h *Hub) Close() error {
	err := h.listener.Close()
	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.peers {
		_ = peer.conn.Close()
	}
	return err
}

func (h *Hub) servePeer(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: panic recovered serving peer %s: %v", conn.RemoteAddr(), r)
		}
	}()

	peer := &hubPeer{
		conn:   conn,
		enc:    json.NewEncoder(conn),
		topics: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.peers[peer] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.peers, peer)
		h.mu.Unlock()
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: failed to close peer connection: %v", err)
		}
	}()

	dec := json.NewDecoder(conn)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if err != io.EOF {
				log.Printf("WARNING: dropping peer %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		switch f.Op {
		case opSubscribe:
			h.mu.Lock()
			peer.topics[f.Topic] = struct{}{}
			h.mu.Unlock()
		case opPublish:
			h.broadcast(f)
		default:
			log.Printf("WARNING: peer %s sent unknown frame op %q", conn.RemoteAddr(), f.Op)
		}
	}
}

func (h *Hub) broadcast(f frame) {
	h.mu.Lock()
	var targets []*hubPeer
	for peer := range h.peers {
		if _, subscribed := peer.topics[f.Topic]; subscribed {
			targets = append(targets, peer)
		}
	}
	h.mu.Unlock()

	for _, peer := range targets {
		peer.writeMu.Lock()
		err := peer.enc.Encode(f)
		peer.writeMu.Unlock()
		if err != nil {
			// Best-effort delivery: the peer's read loop will notice the
			// broken connection and clean up.
			log.Printf("WARNING: failed to relay %s frame to %s: %v", f.Topic, peer.conn.RemoteAddr(), err)
		}
	}
}

// Client is a Transport backed by a hub connection.
type Client struct {
	conn    net.Conn
	writeMu sync.Mutex
	enc     *json.Encoder

	mu       sync.Mutex
	handlers map[string][]Handler
}

// Dial connects a Client to a hub over TCP.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial transport hub: %w", err)
	}
	return NewClient(conn), nil
}

// DialVsock connects a Client to a hub over vsock.
func DialVsock(cid, port uint32) (*Client, error) {
	conn, err := vsock.Dial(cid, port, nil)
	if err != nil {
		return nil, fmt.Errorf("dial transport hub over vsock: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established hub connection and starts its read
// loop. Handlers run on the read loop goroutine, in arrival order.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:     conn,
		enc:      json.NewEncoder(conn),
		handlers: make(map[string][]Handler),
	}
	go c.readLoop()
	return c
}

// Close disconnects from the hub, stopping the read loop.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Publish(topic string, payload []byte) error {
	return c.send(frame{Op: opPublish, Topic: topic, Payload: payload})
}

func (c *Client) Subscribe(topic string, handler Handler) {
	c.mu.Lock()
	known := len(c.handlers[topic]) > 0
	c.handlers[topic] = append(c.handlers[topic], handler)
	c.mu.Unlock()
	if !known {
		if err := c.send(frame{Op: opSubscribe, Topic: topic}); err != nil {
			log.Printf("ERROR: failed to subscribe to %s: %v", topic, err)
		}
	}
}

func (c *Client) send(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.enc.Encode(f)
}

func (c *Client) readLoop() {
	dec := json.NewDecoder(c.conn)
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if err != io.EOF {
				log.Printf("WARNING: transport client read loop stopped: %v", err)
			}
			return
		}
		if f.Op != opPublish {
			continue
		}
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[f.Topic]...)
		c.mu.Unlock()
		for _, handler := range handlers {
			handler(f.Payload)
		}
	}
}
