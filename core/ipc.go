package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/encodeous/ddsroute/state"
	"golang.org/x/sync/errgroup"
)

const ipcReadTimeout = 5 * time.Second

// IpcServer answers inspect, trace, route and port commands on a unix socket
type IpcServer struct {
	listener net.Listener
	group    *errgroup.Group
	path     string
}

func (i *IpcServer) Init(s *state.State) error {
	i.path = s.GetIpcPath()
	_ = os.Remove(i.path)
	l, err := net.Listen("unix", i.path)
	if err != nil {
		return fmt.Errorf("failed to listen on ipc socket %s: %w", i.path, err)
	}
	i.listener = l

	var ctx context.Context
	i.group, ctx = errgroup.WithContext(s.Context)
	i.group.Go(func() error {
		for {
			conn, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			i.group.Go(func() error {
				defer conn.Close()
				err := handleIpc(ctx, s.Env, conn)
				if err != nil {
					s.Log.Debug("ipc request failed", "error", err)
				}
				return nil
			})
		}
	})
	return nil
}

func (i *IpcServer) Cleanup(s *state.State) error {
	err := i.listener.Close()
	if gerr := i.group.Wait(); gerr != nil {
		err = errors.Join(err, gerr)
	}
	_ = os.Remove(i.path)
	return err
}

func handleIpc(ctx context.Context, e *state.Env, conn net.Conn) error {
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	_ = conn.SetReadDeadline(time.Now().Add(ipcReadTimeout))
	line, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	_ = conn.SetReadDeadline(time.Time{})
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

	var res string
	switch cmd {
	case "inspect":
		v, err := e.DispatchWait(func(s *state.State) (any, error) {
			return Inspect(s), nil
		})
		if err != nil {
			return err
		}
		res = v.(string)
	case "trace":
		v, err := e.DispatchWait(func(s *state.State) (any, error) {
			return Get[*RouterTrace](s), nil
		})
		if err != nil {
			return err
		}
		v.(*RouterTrace).Listen(ctx.Done(), func(ev TraceEvent) bool {
			_, err := rw.WriteString(ev.String() + "\n")
			return err == nil && rw.Flush() == nil
		})
		return nil
	case "down", "up":
		port, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", arg, err)
		}
		_, err = e.DispatchWait(func(s *state.State) (any, error) {
			t := Get[*Transport](s)
			if cmd == "down" {
				return nil, t.SetPortDown(port)
			}
			return nil, t.SetPortUp(port)
		})
		if err != nil {
			res = "error: " + err.Error() + "\n"
		} else {
			res = "ok\n"
		}
	case "route":
		v, err := e.DispatchWait(func(s *state.State) (any, error) {
			return ResolveRoute(Get[*Transport](s).Table, arg)
		})
		if err != nil {
			res = "error: " + err.Error() + "\n"
		} else {
			res = v.(string)
		}
	default:
		res = fmt.Sprintf("error: unknown command %q\n", cmd)
	}
	if _, err := rw.WriteString(res); err != nil {
		return err
	}
	if err := rw.WriteByte(0); err != nil {
		return err
	}
	return rw.Flush()
}

// Inspect renders the ports, neighbours and route table of a running router
func Inspect(s *state.State) string {
	t := Get[*Transport](s)
	now := t.Table.Clock()
	sb := strings.Builder{}

	sb.WriteString("Ports:\n")
	for idx := range state.MaxPorts {
		p, _ := s.Ports.Get(idx)
		if p.Network == 0 && p.Kind == state.PortClosed {
			continue
		}
		sb.WriteString(fmt.Sprintf(" - %d: net %s kind %s subnet %s\n", idx, p.Network, p.Kind, p.Subnet))
	}

	sb.WriteString("\nNeighbours:\n")
	rt := make([]state.Pair[int, string], 0)
	for _, n := range t.Neighbours() {
		rt = append(rt, state.Pair[int, string]{
			V1: n.Port,
			V2: fmt.Sprintf(" - %s %s port %d at %s, seen %.1fs ago", n.Source, n.Class, n.Port, n.Addr, time.Since(n.LastSeen).Seconds()),
		})
	}
	if len(rt) == 0 {
		sb.WriteString(" (none)\n")
	}
	state.SortPairs(rt)
	for _, p := range rt {
		sb.WriteString(p.V2 + "\n")
	}

	sb.WriteString("\nRoute Table:\n")
	for _, e := range t.Table.Entries() {
		for _, class := range state.Classes {
			r := e.Routes[class]
			if r.State == state.Unused {
				continue
			}
			sb.WriteString(fmt.Sprintf(" - [%02d] %s %s %s metric %d via %s port %d", e.Index, e.Network, class, r.State, r.Metric, r.NextHop, r.Port))
			if !r.Expiration.IsZero() {
				sb.WriteString(fmt.Sprintf(" expires %.1fs", r.Expiration.Sub(now).Seconds()))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ResolveRoute answers a "<network>[.<host>] [class]" query with the next hop the table would use
func ResolveRoute(table *RouteTable, query string) (string, error) {
	target, cls, _ := strings.Cut(strings.TrimSpace(query), " ")
	dest := state.SourceAddr{}
	var err error
	if strings.Contains(target, ".") {
		dest, err = state.ParseSourceAddr(target)
	} else {
		err = dest.Network.UnmarshalText([]byte(target))
	}
	if err != nil {
		return "", err
	}
	class := state.Standard
	if cls = strings.TrimSpace(cls); cls != "" {
		if err := class.UnmarshalText([]byte(cls)); err != nil {
			return "", err
		}
	}

	hop, err := table.FindNextHop(dest, class)
	if err != nil {
		return "", err
	}
	if hop.Direct {
		return fmt.Sprintf("%s %s direct port %d\n", dest.Network, class, hop.Port), nil
	}
	defer table.Unpin(dest.Network)
	return fmt.Sprintf("%s %s via %s port %d metric %d\n", dest.Network, class, hop.Addr, hop.Port, hop.Metric), nil
}

// IPCGet sends a single command to a running router and returns its reply
func IPCGet(path, cmd string) (string, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	if _, err := rw.WriteString(cmd + "\n"); err != nil {
		return "", err
	}
	if err := rw.Flush(); err != nil {
		return "", err
	}
	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}

// IPCTrace streams router events from a running router into w until the connection closes
func IPCTrace(path string, w io.Writer) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("trace\n")); err != nil {
		return err
	}
	_, err = io.Copy(w, conn)
	return err
}
