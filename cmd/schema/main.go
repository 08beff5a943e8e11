package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"spectate/server/internal/net/proto"
	"spectate/server/internal/netsync"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

type messageDoc struct {
	title       string
	description string
	value       any
}

var messages = []messageDoc{
	{"Client Command", "Inbound websocket message sent by spectator clients.", proto.ClientMessage{}},
	{"Capability Declaration", "Renderer capability handshake.", netsync.CapabilityDeclaration{}},
	{"Session State", "Start or stop notification for a networked session.", netsync.SessionState{}},
	{"Camera Parameters", "Parameter push for a networked session.", netsync.Parameters{}},
	{"Target Update", "Rate-limited target position for a networked entity session.", netsync.TargetUpdate{}},
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}

	variants := make([]*jsonschema.Schema, 0, len(messages))
	for _, msg := range messages {
		schema := reflector.ReflectFromType(reflect.TypeOf(msg.value))
		schema.Version = ""
		schema.Title = msg.title
		schema.Description = msg.description
		variants = append(variants, schema)
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Spectate Wire Protocol",
		Description: "Messages exchanged between the spectate server and its clients.",
		OneOf:       variants,
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
