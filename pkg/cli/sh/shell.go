// Package sh is an interactive host console for a device speaking the
// line protocol with real-time commands.
package sh

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rtserial/pkg/config"
	"github.com/robotalks/rtserial/pkg/realtime"
	"github.com/robotalks/rtserial/pkg/serial/hostport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *config.Config
	Conn   *Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly bool
	timeout  = 5 * time.Second

	commands = []*ishell.Cmd{
		&ListCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&SendCmd,
		&StreamCmd,
		&RealtimeCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.DurationVar(&timeout, "timeout", timeout, "Response timeout.")
}

// New creates a new shell.
func New(conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Timeout:     timeout,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Dial opens target: a ws:// URL or a serial device path.
func Dial(target string, baud int) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		ws, err := hostport.DialWebsocket(target)
		if err != nil {
			return nil, err
		}
		return ws, nil
	}
	return hostport.OpenSerial(hostport.SerialConfig{Device: target, Baud: baud})
}

// Connect connects the device at target.
func (s *Shell) Connect(target string, baud int) error {
	stream, err := Dial(target, baud)
	if err != nil {
		return err
	}
	s.Disconnect()
	conn := NewConn(target, stream, func(line string) {
		s.Shell.Println(line)
	})
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", target))
	go func() {
		<-conn.Done()
		if s.Conn == conn && s.Interactive {
			s.Shell.Printf("%s disconnected\n", target)
		}
	}()
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// autoTarget derives the device to connect from the config.
func (s *Shell) autoTarget() string {
	switch s.Config.Wire.Mode {
	case config.WireSerial:
		return s.Config.Wire.Device
	case config.WireWebsocket:
		addr := s.Config.Wire.Listen
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		return "ws://" + addr + "/"
	}
	return ""
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if target := s.autoTarget(); target != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", target)
		}
		if err := s.Connect(target, s.Config.Wire.Baud); err != nil {
			log.Fatalf("connect %q failed: %v", target, err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func (s *Shell) send(c *ishell.Context, line string) bool {
	resp, err := s.Conn.Send(line, s.Timeout)
	if err != nil {
		c.Err(err)
		return false
	}
	c.Println(resp)
	return resp == "ok"
}

// ParseRealtime converts command names or numeric byte values into
// real-time command bytes.
func ParseRealtime(args []string) ([]byte, error) {
	cmds := make([]byte, 0, len(args))
	for _, arg := range args {
		if k, ok := realtime.Lookup(arg); ok {
			cmds = append(cmds, k.Byte())
			continue
		}
		val, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("unknown real-time command %q", arg)
		}
		b := byte(val)
		if realtime.Classify(b).Class == realtime.ClassData {
			return nil, fmt.Errorf("0x%02x is not a real-time command", b)
		}
		cmds = append(cmds, b)
	}
	return cmds, nil
}

// RealtimeHelp lists command names with their bytes.
func RealtimeHelp() []string {
	var lines []string
	for _, k := range realtime.Kinds() {
		lines = append(lines, fmt.Sprintf("%-14s 0x%02x", k, k.Byte()))
	}
	sort.Strings(lines)
	return lines
}

var (
	// ListCmd lists serial devices.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"l"},
		Help:    "list serial devices",
		Func: func(c *ishell.Context) {
			ports, err := hostport.ListSerial()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial devices found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "DEVICE|ws://HOST:PORT/ [BAUD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("DEVICE required"))
				return
			}
			baud := s.Config.Wire.Baud
			if len(c.Args) > 1 {
				val, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("Invalid BAUD: %v", err))
					return
				}
				baud = val
			}
			if err := s.Connect(c.Args[0], baud); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// SendCmd sends one line and prints the response.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "LINE",
		Func: MustBeConnected(func(c *ishell.Context) {
			ShellFrom(c).send(c, strings.Join(c.Args, " "))
		}),
	}

	// StreamCmd sends a file line by line, stopping at the first error.
	StreamCmd = ishell.Cmd{
		Name: "stream",
		Help: "FILE",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()
			s := ShellFrom(c)
			scanner := bufio.NewScanner(f)
			for n := 1; scanner.Scan(); n++ {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				c.Printf("%d: %s\n", n, line)
				if !s.send(c, line) {
					return
				}
			}
			if err := scanner.Err(); err != nil {
				c.Err(err)
			}
		}),
	}

	// RealtimeCmd sends real-time commands.
	RealtimeCmd = ishell.Cmd{
		Name:    "rt",
		Aliases: []string{"!"},
		Help:    "NAME|BYTE... (no args lists names)",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				for _, line := range RealtimeHelp() {
					c.Println(line)
				}
				return
			}
			MustBeConnected(func(c *ishell.Context) {
				cmds, err := ParseRealtime(c.Args)
				if err != nil {
					c.Err(err)
					return
				}
				if err := ShellFrom(c).Conn.Realtime(cmds...); err != nil {
					c.Err(err)
				}
			})(c)
		},
	}

	// StatusCmd requests a status report.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"?"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			if err := ShellFrom(c).Conn.Realtime(realtime.CmdStatusReport); err != nil {
				c.Err(err)
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(config.NewConfig()).Run(flag.Args()...)
}
