package surface

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/scene"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// HubConfig tunes the websocket hub.
type HubConfig struct {
	Width, Height int
	// QueueSize bounds each client's outbound queue; frames for a full
	// queue are dropped.
	QueueSize int
	// InputRate and InputBurst bound inbound messages per client.
	InputRate  rate.Limit
	InputBurst int
	// OnDrop is called for every dropped frame.
	OnDrop func()
}

// DefaultHubConfig returns sensible defaults for a browser client.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Width:      1280,
		Height:     720,
		QueueSize:  8,
		InputRate:  rate.Limit(60),
		InputBurst: 30,
	}
}

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	once    sync.Once
	done    chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// enqueue never blocks; it reports whether the message was queued.
func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub is a Surface that broadcasts rendered frames to websocket clients
// and forwards their input to an InputHandler.
type Hub struct {
	cfg       HubConfig
	log       logging.Logger
	validator *InputValidator
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	clients  map[*client]struct{}
	handler  InputHandler
	width    int
	height   int
	static   []byte
	staticID uuid.UUID
	closed   bool
}

// NewHub constructs a hub.
func NewHub(cfg HubConfig, log logging.Logger) (*Hub, error) {
	if log == nil {
		log = logging.Noop()
	}
	def := DefaultHubConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.InputRate <= 0 {
		cfg.InputRate = def.InputRate
	}
	if cfg.InputBurst <= 0 {
		cfg.InputBurst = def.InputBurst
	}
	v, err := NewInputValidator()
	if err != nil {
		return nil, err
	}
	return &Hub{
		cfg:       cfg,
		log:       log,
		validator: v,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		width:   cfg.Width,
		height:  cfg.Height,
	}, nil
}

// SetHandler installs the receiver for client input.
func (h *Hub) SetHandler(handler InputHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *Hub) Init(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrSurfaceClosed
	}
	return nil
}

func (h *Hub) Size() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Render encodes f once and queues it for every client.
func (h *Hub) Render(f Frame) error {
	for i := range f.Entities {
		if f.Entities[i].Kind == scene.KindStarField {
			h.updateStatic(&f.Entities[i])
			break
		}
	}
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

func (h *Hub) updateStatic(e *scene.Entity) {
	h.mu.Lock()
	same := h.staticID == e.ID
	h.mu.Unlock()
	if same {
		return
	}
	data, err := EncodeStatic(e)
	if err != nil {
		h.log.Warn(context.Background(), "encode star field failed", logging.Err(err))
		return
	}
	h.mu.Lock()
	h.static, h.staticID = data, e.ID
	h.mu.Unlock()
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.enqueue(data) && h.cfg.OnDrop != nil {
			h.cfg.OnDrop()
		}
	}
}

// Release tells clients to drop resources for a removed entity.
func (h *Hub) Release(id uuid.UUID) {
	h.broadcast(encodeRelease(id))
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	return nil
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}
	c := &client{
		conn:    conn,
		send:    make(chan []byte, h.cfg.QueueSize),
		limiter: rate.NewLimiter(h.cfg.InputRate, h.cfg.InputBurst),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	static := h.static
	h.mu.Unlock()
	if static != nil {
		c.enqueue(static)
	}
	h.log.Debug(r.Context(), "websocket client connected", logging.String("remote", r.RemoteAddr))

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.enqueue(encodeError("rate limited"))
			continue
		}
		msg, err := h.validator.Decode(data)
		if err != nil {
			h.log.Debug(ctx, "rejected client message", logging.Err(err))
			c.enqueue(encodeError(err.Error()))
			continue
		}
		if reply := h.dispatch(ctx, msg); reply != nil {
			c.enqueue(reply)
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, msg InputMessage) []byte {
	h.mu.Lock()
	handler := h.handler
	if msg.Type == InResize {
		h.width, h.height = msg.Width, msg.Height
	}
	h.mu.Unlock()
	if handler == nil {
		return encodeError("no session attached")
	}

	var err error
	switch msg.Type {
	case InPointer:
		coord, hit, perr := handler.PickPixel(msg.X, msg.Y)
		if perr != nil {
			err = perr
			break
		}
		return encodePicked(hit, coord.Lat, coord.Lon)
	case InResize:
		err = handler.Resize(msg.Width, msg.Height)
	case InOrbit:
		err = handler.Orbit(msg.DX, msg.DY)
	case InZoom:
		err = handler.Zoom(msg.Factor)
	}
	if err != nil {
		h.log.Warn(ctx, "client input failed", logging.String("type", msg.Type), logging.Err(err))
		return encodeError(err.Error())
	}
	return nil
}
