package sh

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	fx "github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/motorlink"
	"github.com/robotalks/motorlink/pkg/l1/msgs"
	pb "github.com/robotalks/motorlink/pkg/proto/motorlink/l1/v1"
)

// ParseLink parses an optional LINK argument, 0 if absent.
func ParseLink(args []string) (uint32, error) {
	if len(args) == 0 {
		return 0, nil
	}
	link, err := strconv.ParseUint(args[0], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid LINK: %v", err)
	}
	return uint32(link), nil
}

func decimal(v int64, unit string) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%d%s", sign, v/10, v%10, unit)
}

func formatTime(nanos int64) string {
	if nanos == 0 {
		return "-"
	}
	return time.Unix(0, nanos).Format("2006-01-02 15:04:05.000")
}

// FormatTelemetry prints a telemetry event for display.
func FormatTelemetry(m *pb.MotorTelemetry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "link %d %s", m.Link, motorlink.State(m.State))
	if m.Variant != "" {
		fmt.Fprintf(&sb, " [%s]", m.Variant)
	}
	fmt.Fprintf(&sb, " rpm=%d speed=%s voltage=%s current=%s power=%dW",
		m.Rpm,
		decimal(int64(m.Speed), "km/h"),
		decimal(int64(m.Voltage), "V"),
		decimal(int64(m.Current), "A"),
		m.Power)
	fmt.Fprintf(&sb, " gear=%d roll=%s motor=%d°C controller=%d°C throttle=%d odo=%s",
		m.Gear, motorlink.Roll(m.Roll), m.MotorTemp, m.ControllerTemp, m.Throttle,
		decimal(int64(m.Odometer), "km"))
	if m.ActiveErrors != 0 {
		fmt.Fprintf(&sb, " faults=%s", motorlink.FaultFlags(m.ActiveErrors))
	}
	return sb.String()
}

// FormatStats prints link counters for display.
func FormatStats(m *pb.LinkStats) string {
	return fmt.Sprintf("link %d %s [%s] frames=%d decoded=%d crc-errors=%d discarded=%d dropped=%d handshakes=%d requests=%d tx-errors=%d",
		m.Link, motorlink.State(m.State), m.Variant,
		m.Frames, m.Decoded, m.ChecksumErrors, m.DiscardedBytes, m.DroppedBytes,
		m.Handshakes, m.PeriodicRequests, m.TxErrors)
}

// FormatFaults prints the fault journal, one entry per line.
func FormatFaults(m *pb.FaultSummary) string {
	if len(m.Entries) == 0 {
		return "No faults recorded"
	}
	lines := make([]string, len(m.Entries))
	for n, e := range m.Entries {
		lines[n] = fmt.Sprintf("link %d %-22s x%-4d first %s last %s",
			e.Link, e.Name, e.Count, formatTime(e.FirstSeen), formatTime(e.LastSeen))
	}
	return strings.Join(lines, "\n")
}

// FormatMessage prints any L1 message for display.
func FormatMessage(msg fx.Message) string {
	switch m := msg.(type) {
	case *msgs.MotorTelemetry:
		return FormatTelemetry(&m.MotorTelemetry)
	case *msgs.LinkStats:
		return FormatStats(&m.LinkStats)
	case *msgs.FaultSummary:
		return FormatFaults(&m.FaultSummary)
	case *msgs.LinkStateChanged:
		return fmt.Sprintf("link %d %s -> %s", m.Link, motorlink.State(m.From), motorlink.State(m.To))
	case *msgs.LinkFault:
		e := motorlink.LinkError{Link: int(m.Link), Kind: motorlink.ErrorKind(m.Kind), Code: m.Code}
		return e.Error()
	case *msgs.CommandOK:
		return "OK"
	case msgs.SerializableMessage:
		return fmt.Sprintf("%s %s", msgs.TypeName(m.TypeID()), m.Serializable().String())
	}
	return fmt.Sprintf("%v", msg)
}

func eventFilter(link uint32, telemetry bool) func(fx.Message) bool {
	return func(msg fx.Message) bool {
		var l uint32
		switch m := msg.(type) {
		case *msgs.MotorTelemetry:
			if !telemetry {
				return false
			}
			l = m.Link
		case *msgs.LinkStateChanged:
			l = m.Link
		case *msgs.LinkFault:
			l = m.Link
		default:
			return false
		}
		return link == 0 || link == l
	}
}

var (
	// WatchCmd prints events of the connected unit.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[LINK] [DURATION], -q skips telemetry",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			args, telemetry := c.Args, true
			if len(args) > 0 && args[0] == "-q" {
				args, telemetry = args[1:], false
			}
			link, err := ParseLink(args)
			if err != nil {
				c.Err(err)
				return
			}
			var duration time.Duration
			if len(args) > 1 {
				if duration, err = time.ParseDuration(args[1]); err != nil {
					c.Err(fmt.Errorf("invalid DURATION: %v", err))
					return
				}
			}
			accept := eventFilter(link, telemetry)
			cancel := s.Loop.Conn.Events(func(msg fx.Message) {
				if accept(msg) {
					s.Print(c, msg)
				}
			})
			defer cancel()
			if duration > 0 || !s.Interactive {
				if duration <= 0 {
					duration = s.Timeout
				}
				select {
				case <-time.After(duration):
				case <-s.Loop.Ctx.Done():
				}
				return
			}
			c.Println("Press Enter to stop")
			c.ReadLine()
		}),
	}

	// ShowCmd waits for the next telemetry of a link.
	ShowCmd = ishell.Cmd{
		Name:    "show",
		Aliases: []string{"s"},
		Help:    "[LINK]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			link, err := ParseLink(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if link == 0 {
				link = 1
			}
			accept := eventFilter(link, true)
			received := make(chan fx.Message, 1)
			cancel := s.Loop.Conn.Events(func(msg fx.Message) {
				if _, ok := msg.(*msgs.MotorTelemetry); ok && accept(msg) {
					select {
					case received <- msg:
					default:
					}
				}
			})
			defer cancel()
			select {
			case msg := <-received:
				s.Print(c, msg)
			case <-time.After(s.Timeout):
				c.Err(fmt.Errorf("no telemetry from link %d", link))
			}
		}),
	}

	// StatsCmd queries protocol counters.
	StatsCmd = ishell.Cmd{
		Name:    "stats",
		Aliases: []string{"st"},
		Help:    "LINK",
		Func: MustBeConnected(func(c *ishell.Context) {
			link, err := ParseLink(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if link == 0 {
				c.Err(fmt.Errorf("LINK required"))
				return
			}
			DoCommand(c, &msgs.LinkStatsQuery{LinkStatsQuery: pb.LinkStatsQuery{Link: link}})
		}),
	}

	// FaultsCmd lists the fault journal.
	FaultsCmd = ishell.Cmd{
		Name:    "faults",
		Aliases: []string{"f"},
		Help:    "[LINK]",
		Func: MustBeConnected(func(c *ishell.Context) {
			link, err := ParseLink(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			DoCommand(c, &msgs.FaultsQuery{FaultsQuery: pb.FaultsQuery{Link: link}})
		}),
	}

	// ClearFaultsCmd clears the fault journal.
	ClearFaultsCmd = ishell.Cmd{
		Name:    "clear-faults",
		Aliases: []string{"cf"},
		Help:    "[LINK]",
		Func: MustBeConnected(func(c *ishell.Context) {
			link, err := ParseLink(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			DoCommand(c, &msgs.ClearFaults{ClearFaults: pb.ClearFaults{Link: link}})
		}),
	}
)

func init() {
	AddCmds(
		&WatchCmd,
		&ShowCmd,
		&StatsCmd,
		&FaultsCmd,
		&ClearFaultsCmd,
	)
}
