package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"spectate/server/internal/net/proto"
)

var errUsage = errors.New("usage")

const helpText = `spectate <point|entity> <name> [mode] [force]
stop
cycle add <point|entity> <name> | group <name> | remove <name> | clear
cycle dwell <seconds> | start [mode] | stop | next | auto <on|off>
param <field> <value>
point <name> [group]
move <dx> <dy> <dz>`

// parseLine turns one typed command into the client message sent upstream.
func parseLine(line string) (proto.ClientMessage, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return proto.ClientMessage{}, errUsage
	}
	args := fields[1:]
	switch fields[0] {
	case "spectate", "watch":
		if len(args) < 2 {
			return proto.ClientMessage{}, fmt.Errorf("%w: spectate <point|entity> <name> [mode] [force]", errUsage)
		}
		msg := proto.ClientMessage{Type: proto.TypeSpectate, Kind: args[0], Target: args[1]}
		for _, extra := range args[2:] {
			if extra == "force" {
				msg.Force = true
				continue
			}
			msg.Mode = extra
		}
		return msg, nil
	case "stop":
		return proto.ClientMessage{Type: proto.TypeStopSpectate}, nil
	case "cycle":
		return parseCycle(args)
	case "param":
		if len(args) != 2 {
			return proto.ClientMessage{}, fmt.Errorf("%w: param <field> <value>", errUsage)
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return proto.ClientMessage{}, fmt.Errorf("param value: %w", err)
		}
		return proto.ClientMessage{Type: proto.TypeParam, Field: args[0], Value: value}, nil
	case "point":
		if len(args) < 1 || len(args) > 2 {
			return proto.ClientMessage{}, fmt.Errorf("%w: point <name> [group]", errUsage)
		}
		msg := proto.ClientMessage{Type: proto.TypePoint, Name: args[0]}
		if len(args) == 2 {
			msg.Group = args[1]
		}
		return msg, nil
	case "move":
		if len(args) != 3 {
			return proto.ClientMessage{}, fmt.Errorf("%w: move <dx> <dy> <dz>", errUsage)
		}
		var v [3]float64
		for i, raw := range args {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return proto.ClientMessage{}, fmt.Errorf("move: %w", err)
			}
			v[i] = parsed
		}
		return proto.ClientMessage{Type: proto.TypeInput, DX: v[0], DY: v[1], DZ: v[2]}, nil
	default:
		return proto.ClientMessage{}, fmt.Errorf("%w: unknown command %q", errUsage, fields[0])
	}
}

func parseCycle(args []string) (proto.ClientMessage, error) {
	if len(args) == 0 {
		return proto.ClientMessage{}, fmt.Errorf("%w: cycle <op> ...", errUsage)
	}
	msg := proto.ClientMessage{Type: proto.TypeCycle, Op: args[0]}
	rest := args[1:]
	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("%w: cycle %s needs %d argument(s)", errUsage, args[0], n)
		}
		return nil
	}
	switch args[0] {
	case "add":
		if err := need(2); err != nil {
			return proto.ClientMessage{}, err
		}
		msg.Kind, msg.Target = rest[0], rest[1]
	case "group":
		if err := need(1); err != nil {
			return proto.ClientMessage{}, err
		}
		msg.Group = rest[0]
	case "remove":
		if err := need(1); err != nil {
			return proto.ClientMessage{}, err
		}
		msg.Target = rest[0]
	case "dwell":
		if err := need(1); err != nil {
			return proto.ClientMessage{}, err
		}
		seconds, err := strconv.Atoi(rest[0])
		if err != nil {
			return proto.ClientMessage{}, fmt.Errorf("cycle dwell: %w", err)
		}
		msg.Seconds = seconds
	case "start":
		if len(rest) > 0 {
			msg.Mode = rest[0]
		}
	case "auto":
		if err := need(1); err != nil {
			return proto.ClientMessage{}, err
		}
		switch rest[0] {
		case "on":
			msg.Enable = true
		case "off":
		default:
			return proto.ClientMessage{}, fmt.Errorf("%w: cycle auto <on|off>", errUsage)
		}
	case "clear", "stop", "next":
	default:
		return proto.ClientMessage{}, fmt.Errorf("%w: unknown cycle op %q", errUsage, args[0])
	}
	return msg, nil
}
