// Package interactive provides the readline driven command shell for
// upnpctl. Commands address devices by list index, friendly name
// fragment, or device ID fragment.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/profiles"
	"github.com/katoemba/upnp-go/pkg/soap"
	"github.com/katoemba/upnp-go/pkg/upnp"
)

const commandTimeout = 15 * time.Second

// ControlPoint is the interactive command loop.
type ControlPoint struct {
	rl       *readline.Instance
	registry *upnp.Registry

	// watchers holds cancel functions of event consumers, keyed by
	// deviceID + serviceType.
	watchers map[string]func()
}

// New creates the shell. Run must be called to start the command loop.
func New() (*ControlPoint, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "upnp> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("initializing readline: %w", err)
	}

	return &ControlPoint{
		rl:       rl,
		watchers: make(map[string]func()),
	}, nil
}

// Stdout returns the writer that cooperates with the readline prompt.
// Log output should be directed here while the shell is running.
func (c *ControlPoint) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run processes commands until the user exits, then calls cancel.
func (c *ControlPoint) Run(ctx context.Context, cancel context.CancelFunc, registry *upnp.Registry) {
	defer c.rl.Close()
	c.registry = registry

	c.printf("UPnP control point ready. Type 'help' for commands.\n")

	for {
		line, err := c.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF on ctrl-d
			break
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if done := c.dispatch(ctx, fields[0], fields[1:]); done {
			break
		}
	}

	for _, stop := range c.watchers {
		stop()
	}
	cancel()
}

// dispatch runs one command. It returns true when the shell should exit.
func (c *ControlPoint) dispatch(ctx context.Context, cmd string, args []string) bool {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "search":
		c.registry.Search()
		c.printf("Search sent\n")
	case "devices", "ls":
		c.cmdDevices()
	case "services":
		c.cmdServices(args)
	case "invoke":
		c.cmdInvoke(ctx, args)
	case "subscribe":
		c.cmdSubscribe(ctx, args)
	case "unsubscribe":
		c.cmdUnsubscribe(ctx, args)
	case "play", "pause", "stop", "next", "previous":
		c.cmdTransport(ctx, cmd, args)
	case "volume":
		c.cmdVolume(ctx, args)
	case "browse":
		c.cmdBrowse(ctx, args)
	case "status":
		c.cmdStatus()
	case "quit", "exit", "q":
		return true
	default:
		c.errorf("unknown command %q, type 'help' for commands", cmd)
	}
	return false
}

func (c *ControlPoint) printHelp() {
	c.printf(`Commands:
  search                                       Re-send the device search
  devices                                      List discovered devices
  services <device>                            List a device's services
  invoke <device> <service> <action> [k=v...]  Invoke a SOAP action
  subscribe <device> <service>                 Subscribe to service events
  unsubscribe <device> <service>               Cancel a subscription
  play|pause|stop|next|previous <device>       Transport control
  volume <device> [0-100]                      Show or set volume
  browse <device> [object-id]                  Browse a media server
  status                                       Show control point status
  quit                                         Exit

Devices can be addressed by list index, friendly name fragment, or
device ID fragment. Services by type URN fragment, e.g. 'AVTransport'.
`)
}

func (c *ControlPoint) cmdDevices() {
	devices := c.registry.Devices()
	if len(devices) == 0 {
		c.printf("No devices discovered yet\n")
		return
	}
	for i, dev := range devices {
		c.printf("%2d. %-30s %-20s %s\n", i+1, dev.FriendlyName(), dev.ModelName(), dev.ID())
	}
}

func (c *ControlPoint) cmdServices(args []string) {
	if len(args) < 1 {
		c.errorf("usage: services <device>")
		return
	}
	dev := c.resolveDevice(args[0])
	if dev == nil {
		return
	}
	c.printf("%s (%s)\n", dev.FriendlyName(), dev.DeviceType())
	for _, svc := range dev.Services() {
		base := svc.Base()
		actions := "no description"
		if scpd := base.SCPD(); scpd != nil {
			names := make([]string, 0, len(scpd.Actions))
			for _, a := range scpd.Actions {
				names = append(names, a.Name)
			}
			sort.Strings(names)
			actions = strings.Join(names, ", ")
		}
		c.printf("  %s\n    subscription: %s\n    actions: %s\n",
			base.ServiceType(), base.SubscriptionState(), actions)
	}
}

func (c *ControlPoint) cmdInvoke(ctx context.Context, args []string) {
	if len(args) < 3 {
		c.errorf("usage: invoke <device> <service> <action> [arg=value ...]")
		return
	}
	svc := c.resolveService(args[0], args[1])
	if svc == nil {
		return
	}

	var soapArgs []soap.Arg
	for _, pair := range args[3:] {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			c.errorf("argument %q is not of the form name=value", pair)
			return
		}
		soapArgs = append(soapArgs, soap.Arg{Name: name, Value: value})
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := svc.Invoke(ctx, args[2], soapArgs)
	if err != nil {
		c.errorf("invoke failed: %v", err)
		return
	}
	if len(result) == 0 {
		c.printf("OK\n")
		return
	}
	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.printf("  %s = %s\n", name, result[name])
	}
}

func (c *ControlPoint) cmdSubscribe(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.errorf("usage: subscribe <device> <service>")
		return
	}
	svc := c.resolveService(args[0], args[1])
	if svc == nil {
		return
	}

	subCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := svc.Subscribe(subCtx); err != nil {
		c.errorf("subscribe failed: %v", err)
		return
	}
	c.printf("Subscribed, SID %s\n", svc.SID())

	key := svc.DeviceID() + "/" + svc.ServiceType()
	if _, ok := c.watchers[key]; ok {
		return
	}
	events, stop := svc.Events()
	c.watchers[key] = stop
	go c.watch(svc, events)
}

func (c *ControlPoint) watch(svc *upnp.Service, events <-chan eventing.Notification) {
	for n := range events {
		keys := make([]string, 0, len(n.Properties))
		for k := range n.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value := n.Properties[k]
			if len(value) > 120 {
				value = value[:120] + "..."
			}
			c.printf("[event] %s %s: %s = %s\n",
				svc.DeviceFriendlyName(), shortType(svc.ServiceType()), k, value)
		}
	}
}

func (c *ControlPoint) cmdUnsubscribe(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.errorf("usage: unsubscribe <device> <service>")
		return
	}
	svc := c.resolveService(args[0], args[1])
	if svc == nil {
		return
	}

	key := svc.DeviceID() + "/" + svc.ServiceType()
	if stop, ok := c.watchers[key]; ok {
		stop()
		delete(c.watchers, key)
	}

	unsubCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := svc.Unsubscribe(unsubCtx); err != nil {
		c.errorf("unsubscribe failed: %v", err)
		return
	}
	c.printf("Unsubscribed\n")
}

func (c *ControlPoint) cmdTransport(ctx context.Context, cmd string, args []string) {
	if len(args) < 1 {
		c.errorf("usage: %s <device>", cmd)
		return
	}
	dev := c.resolveDevice(args[0])
	if dev == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var err error
	if av := profiles.AVTransport1Of(dev); av != nil {
		switch cmd {
		case "play":
			err = av.Play(ctx, 0, "1")
		case "pause":
			err = av.Pause(ctx, 0)
		case "stop":
			err = av.Stop(ctx, 0)
		case "next":
			err = av.Next(ctx, 0)
		case "previous":
			err = av.Previous(ctx, 0)
		}
	} else if pl := profiles.OpenHomePlaylist1Of(dev); pl != nil {
		switch cmd {
		case "play":
			err = pl.Play(ctx)
		case "pause":
			err = pl.Pause(ctx)
		case "stop":
			err = pl.Stop(ctx)
		case "next":
			err = pl.Next(ctx)
		case "previous":
			err = pl.Previous(ctx)
		}
	} else {
		c.errorf("%s has no transport service", dev.FriendlyName())
		return
	}

	if err != nil {
		c.errorf("%s failed: %v", cmd, err)
		return
	}
	c.printf("OK\n")
}

func (c *ControlPoint) cmdVolume(ctx context.Context, args []string) {
	if len(args) < 1 {
		c.errorf("usage: volume <device> [0-100]")
		return
	}
	dev := c.resolveDevice(args[0])
	if dev == nil {
		return
	}
	rc := profiles.RenderingControl1Of(dev)
	if rc == nil {
		c.errorf("%s has no rendering control service", dev.FriendlyName())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if len(args) >= 2 {
		level, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			c.errorf("volume must be a number: %v", err)
			return
		}
		if err := rc.SetVolume(ctx, 0, profiles.ChannelMaster, uint32(level)); err != nil {
			c.errorf("set volume failed: %v", err)
			return
		}
	}
	level, err := rc.GetVolume(ctx, 0, profiles.ChannelMaster)
	if err != nil {
		c.errorf("get volume failed: %v", err)
		return
	}
	c.printf("Volume: %d\n", level)
}

func (c *ControlPoint) cmdBrowse(ctx context.Context, args []string) {
	if len(args) < 1 {
		c.errorf("usage: browse <device> [object-id]")
		return
	}
	dev := c.resolveDevice(args[0])
	if dev == nil {
		return
	}
	cd := profiles.ContentDirectory1Of(dev)
	if cd == nil {
		c.errorf("%s has no content directory service", dev.FriendlyName())
		return
	}

	objectID := "0"
	if len(args) >= 2 {
		objectID = args[1]
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	result, err := cd.Browse(ctx, objectID, profiles.BrowseDirectChildren, "*", 0, 50, "")
	if err != nil {
		c.errorf("browse failed: %v", err)
		return
	}
	c.printf("Returned %d of %d entries in %q:\n", result.NumberReturned, result.TotalMatches, objectID)
	for _, entry := range parseDIDLTitles(result.Result) {
		c.printf("  %-12s %s\n", entry.id, entry.title)
	}
}

func (c *ControlPoint) cmdStatus() {
	devices := c.registry.Devices()
	c.printf("Devices: %d\n", len(devices))
	for _, dev := range devices {
		c.printf("  %s (last seen %s ago)\n",
			dev.FriendlyName(), time.Since(dev.LastSeen()).Round(time.Second))
		for _, svc := range dev.Services() {
			base := svc.Base()
			line := fmt.Sprintf("    %-16s %s", shortType(base.ServiceType()), base.SubscriptionState())
			if sid := base.SID(); sid != "" {
				line += " (" + sid + ")"
			}
			c.printf("%s\n", line)
		}
	}
	c.printf("Active event watchers: %d\n", len(c.watchers))
}

// resolveDevice finds a device by list index, friendly name fragment,
// or ID fragment. Lookup is case insensitive and complains on ambiguity.
func (c *ControlPoint) resolveDevice(ref string) *upnp.Device {
	devices := c.registry.Devices()

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(devices) {
			c.errorf("device index %d out of range (1-%d)", index, len(devices))
			return nil
		}
		return devices[index-1]
	}

	needle := strings.ToLower(ref)
	var matches []*upnp.Device
	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.FriendlyName()), needle) ||
			strings.Contains(strings.ToLower(dev.ID()), needle) {
			matches = append(matches, dev)
		}
	}
	switch len(matches) {
	case 0:
		c.errorf("no device matches %q", ref)
		return nil
	case 1:
		return matches[0]
	default:
		names := make([]string, len(matches))
		for i, dev := range matches {
			names[i] = dev.FriendlyName()
		}
		c.errorf("%q is ambiguous: %s", ref, strings.Join(names, ", "))
		return nil
	}
}

// resolveService finds a service on a device by type URN fragment.
func (c *ControlPoint) resolveService(deviceRef, serviceRef string) *upnp.Service {
	dev := c.resolveDevice(deviceRef)
	if dev == nil {
		return nil
	}

	needle := strings.ToLower(serviceRef)
	var matches []*upnp.Service
	for _, svc := range dev.Services() {
		if strings.Contains(strings.ToLower(svc.Base().ServiceType()), needle) {
			matches = append(matches, svc.Base())
		}
	}
	switch len(matches) {
	case 0:
		c.errorf("%s has no service matching %q", dev.FriendlyName(), serviceRef)
		return nil
	case 1:
		return matches[0]
	default:
		types := make([]string, len(matches))
		for i, svc := range matches {
			types[i] = svc.ServiceType()
		}
		c.errorf("%q is ambiguous: %s", serviceRef, strings.Join(types, ", "))
		return nil
	}
}

func (c *ControlPoint) printf(format string, args ...any) {
	fmt.Fprintf(c.rl.Stdout(), format, args...)
}

func (c *ControlPoint) errorf(format string, args ...any) {
	fmt.Fprintf(c.rl.Stderr(), "Error: "+format+"\n", args...)
}

// shortType reduces a service type URN to its service name, e.g.
// urn:schemas-upnp-org:service:AVTransport:1 becomes AVTransport.
func shortType(serviceType string) string {
	parts := strings.Split(serviceType, ":")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return serviceType
}

