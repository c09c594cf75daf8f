package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/encodeous/ddsroute/perf"
	"github.com/encodeous/ddsroute/protocol"
	"github.com/encodeous/ddsroute/state"
	"github.com/gaissmai/bart"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"
)

// Transport carries route advertisements between neighbouring routers over a single udp socket.
// Every local port is a logical interface, datagrams are assigned to a port by the subnet of their sender.
type Transport struct {
	Table *RouteTable

	env        *state.Env
	trace      *RouterTrace
	conn       *net.UDPConn
	portOf     bart.Table[int]
	neighbours *ttlcache.Cache[neighbourKey, Neighbour]
	group      *errgroup.Group
	// downKinds remembers the link type of ports brought down over ipc, only used on the dispatch goroutine
	downKinds map[int]state.PortKind
}

func (t *Transport) Init(s *state.State) error {
	t.env = s.Env
	t.trace = Get[*RouterTrace](s)
	t.Table = NewRouteTable(s.Ports, t)
	t.neighbours = newNeighbourCache(state.Units(state.RouteTimeout))
	t.neighbours.OnEviction(t.neighbourDown)
	t.downKinds = make(map[int]state.PortKind)

	for idx, p := range s.LocalCfg.Ports {
		if p.Subnet.IsValid() {
			t.portOf.Insert(p.Subnet.Masked(), idx)
		}
	}

	addr, err := net.ResolveUDPAddr("udp", s.Bind)
	if err != nil {
		return fmt.Errorf("failed to resolve bind address %s: %w", s.Bind, err)
	}
	t.conn, err = net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Bind, err)
	}
	if addr.IP == nil || addr.IP.To4() != nil {
		// advertisements are only meant for the directly attached link
		if err := ipv4.NewConn(t.conn).SetTTL(1); err != nil {
			s.Log.Warn("failed to limit ttl", "error", err)
		}
	}
	s.Log.Info("transport listening", "addr", t.conn.LocalAddr())

	var ctx context.Context
	t.group, ctx = errgroup.WithContext(s.Context)
	t.group.Go(func() error {
		return t.receive(ctx)
	})

	t.installLocalRoutes()
	t.installStaticRoutes()

	s.Env.RepeatTask(ageRoutes, state.AgingDelay)
	s.Env.RepeatTask(broadcastRoutes, state.FullTableDelay)
	s.Env.RepeatTask(gcNeighbours, state.GcDelay)
	s.Env.ScheduleTask(requestRoutes, state.RequestDelay)
	return nil
}

func (t *Transport) Cleanup(s *state.State) error {
	err := t.conn.Close()
	if gerr := t.group.Wait(); gerr != nil {
		err = errors.Join(err, gerr)
	}
	t.neighbours.DeleteAll()
	return err
}

// LocalAddr is the address the transport socket is bound to
func (t *Transport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (t *Transport) Log(event RouterEvent, desc string, args ...any) {
	if event.IsWarning() {
		t.env.Log.Warn(desc, append([]any{"event", event}, args...)...)
	} else {
		t.env.Log.Debug(desc, append([]any{"event", event}, args...)...)
	}
	if t.trace != nil {
		t.trace.Publish(TraceEvent{
			Time:  t.Table.Clock(),
			Event: event,
			Desc:  desc,
			Args:  args,
		})
	}
}

// SendUpdates advertises the table of class to every neighbour if any of its routes changed
func (t *Transport) SendUpdates(class state.RouteClass) {
	if !t.Table.TakeChanges(class) {
		return
	}
	t.BroadcastTable(class)
}

// BroadcastTable advertises the full table of class on every active port
func (t *Transport) BroadcastTable(class state.RouteClass) {
	records := t.Table.Records(class)
	for _, idx := range t.env.Ports.Active() {
		t.send(idx, class, protocol.CommandResponse, records, t.destinations(idx)...)
	}
}

// Request asks the neighbours on port for their full tables
func (t *Transport) Request(port int) {
	for _, class := range state.Classes {
		t.send(port, class, protocol.CommandRequest, nil, t.destinations(port)...)
	}
}

// destinations are the configured peers and learned neighbours of a port
func (t *Transport) destinations(port int) []netip.AddrPort {
	p, ok := t.env.Ports.Get(port)
	if !ok {
		return nil
	}
	seen := make(map[netip.AddrPort]struct{})
	out := make([]netip.AddrPort, 0, len(p.Peers))
	for _, peer := range p.Peers {
		if _, ok := seen[peer]; !ok {
			seen[peer] = struct{}{}
			out = append(out, peer)
		}
	}
	for _, n := range t.Neighbours() {
		if _, ok := seen[n.Addr]; n.Port == port && !ok {
			seen[n.Addr] = struct{}{}
			out = append(out, n.Addr)
		}
	}
	return out
}

func (t *Transport) send(port int, class state.RouteClass, cmd protocol.Command, records []protocol.Record, to ...netip.AddrPort) {
	if len(to) == 0 || t.conn == nil {
		return
	}
	chunks := protocol.SplitRecords(records)
	if len(chunks) == 0 {
		chunks = append(chunks, nil)
	}
	source := t.env.Source(port)
	for _, chunk := range chunks {
		buf, err := protocol.Encode(source, class, cmd, chunk)
		if err != nil {
			t.env.Log.Error("failed to encode advertisement", "error", err)
			return
		}
		for _, dst := range to {
			_, err := t.conn.WriteToUDPAddrPort(buf, dst)
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					t.env.Log.Debug("failed to send advertisement", "to", dst, "error", err)
				}
				continue
			}
			perf.SentAdvertisements.Add(1)
		}
	}
}

func (t *Transport) receive(ctx context.Context) error {
	dec := protocol.NewDecoder()
	buf := make([]byte, state.ReadBufferSize)
	for {
		n, from, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("transport receive failed: %w", err)
		}
		t.handleDatagram(dec, buf[:n], netip.AddrPortFrom(from.Addr().Unmap(), from.Port()))
	}
}

func (t *Transport) handleDatagram(dec *protocol.Decoder, data []byte, from netip.AddrPort) {
	port, ok := t.portOf.Lookup(from.Addr())
	if !ok {
		perf.DroppedDatagrams.Add(1)
		t.env.Log.Debug("dropped datagram from unknown link", "from", from)
		return
	}
	if p, _ := t.env.Ports.Get(port); !p.Kind.Active() {
		perf.DroppedDatagrams.Add(1)
		return
	}
	msg, err := dec.Decode(data)
	if err != nil {
		perf.DroppedDatagrams.Add(1)
		t.env.Log.Debug("dropped malformed datagram", "from", from, "error", err)
		return
	}
	source, class := msg.Frame.Source, msg.Frame.Class
	if source.Host == t.env.Host {
		return
	}
	perf.RecvAdvertisements.Add(1)
	perf.AdvertisementRecords.Add(float64(len(msg.Advertisement.Records)))

	switch msg.Advertisement.Command {
	case protocol.CommandRequest:
		t.send(port, class, protocol.CommandResponse, t.Table.Records(class), from)
	case protocol.CommandResponse:
		t.markAlive(source, class, port, from)
		for _, rec := range msg.Advertisement.Records {
			err := t.Table.UpdateOne(rec.Network, source, int(rec.Metric)+1, port, class)
			if err != nil {
				t.env.Log.Debug("failed to merge route", "net", rec.Network, "from", source, "error", err)
			}
		}
	case protocol.CommandNameRegister:
		perf.NameRegistrations.Add(1)
		t.env.Log.Info("name registration", "from", source, "port", port, "records", len(msg.Advertisement.Records))
	default:
		perf.DroppedDatagrams.Add(1)
		t.env.Log.Debug("dropped unknown command", "from", source, "command", msg.Advertisement.Command)
	}
}

// installLocalRoutes adds a direct route for the network of every active port
func (t *Transport) installLocalRoutes() {
	for _, idx := range t.env.Ports.Active() {
		t.installLocalRoute(idx)
	}
}

func (t *Transport) installLocalRoute(port int) {
	p, ok := t.env.Ports.Get(port)
	if !ok || !p.Kind.Active() {
		return
	}
	for _, class := range state.Classes {
		err := t.Table.UpdateOne(p.Network, t.env.Source(port), 0, port, class)
		if err != nil {
			t.env.Log.Error("failed to install local route", "port", port, "net", p.Network, "error", err)
		}
	}
}

// installStaticRoutes refreshes the configured routes whose port is up
func (t *Transport) installStaticRoutes() {
	for _, r := range t.env.Static {
		if p, ok := t.env.Ports.Get(r.Port); !ok || !p.Kind.Active() {
			continue
		}
		err := t.Table.UpdateOne(r.Network, r.Via, r.Metric, r.Port, r.Class)
		if err != nil {
			t.env.Log.Error("failed to install static route", "net", r.Network, "error", err)
		}
	}
}

// SetPortDown closes a port and withdraws every route through it
func (t *Transport) SetPortDown(port int) error {
	old, err := t.env.Ports.SetKind(port, state.PortClosed)
	if err != nil {
		return err
	}
	if old == state.PortClosed {
		return fmt.Errorf("port %d is already down", port)
	}
	t.downKinds[port] = old
	for _, class := range state.Classes {
		t.Table.ClosePort(port, class, true)
	}
	t.env.Log.Info("port down", "port", port)
	return nil
}

// SetPortUp reopens a port closed by SetPortDown
func (t *Transport) SetPortUp(port int) error {
	kind, ok := t.downKinds[port]
	if !ok {
		return fmt.Errorf("port %d was not brought down", port)
	}
	if _, err := t.env.Ports.SetKind(port, kind); err != nil {
		return err
	}
	delete(t.downKinds, port)
	t.installLocalRoute(port)
	t.installStaticRoutes()
	t.Request(port)
	t.env.Log.Info("port up", "port", port, "kind", kind)
	return nil
}

func ageRoutes(s *state.State) error {
	Get[*Transport](s).Table.Age()
	return nil
}

func broadcastRoutes(s *state.State) error {
	t := Get[*Transport](s)
	t.installStaticRoutes()
	for _, class := range state.Classes {
		t.Table.TakeChanges(class)
		t.BroadcastTable(class)
	}
	return nil
}

func requestRoutes(s *state.State) error {
	t := Get[*Transport](s)
	for _, idx := range s.Ports.Active() {
		t.Request(idx)
	}
	return nil
}
