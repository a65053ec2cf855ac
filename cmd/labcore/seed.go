package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"labcore/pkg/domain"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Users          []string            `yaml:"users"`
	LabwareTypes   []seedLabwareType   `yaml:"labware_types"`
	OperationTypes []seedOperationType `yaml:"operation_types"`
	Works          []seedWork          `yaml:"works"`
	Comments       []seedComment       `yaml:"comments"`
	Equipment      []seedEquipment     `yaml:"equipment"`
}

type seedLabwareType struct {
	Name    string `yaml:"name"`
	Rows    int    `yaml:"rows"`
	Columns int    `yaml:"columns"`
}

type seedOperationType struct {
	Name  string   `yaml:"name"`
	Flags []string `yaml:"flags"`
}

type seedWork struct {
	WorkNumber string `yaml:"work_number"`
	Status     string `yaml:"status"`
}

type seedComment struct {
	Category string `yaml:"category"`
	Text     string `yaml:"text"`
	Enabled  *bool  `yaml:"enabled"`
}

type seedEquipment struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled"`
}

var operationTypeFlags = map[string]domain.OperationTypeFlag{
	"in_place":        domain.FlagInPlace,
	"source_is_block": domain.FlagSourceIsBlock,
	"discard_source":  domain.FlagDiscardSource,
	"result":          domain.FlagResult,
}

// seedSummary counts the rows created by one seed run.
type seedSummary struct {
	Users          int `json:"users"`
	LabwareTypes   int `json:"labware_types"`
	OperationTypes int `json:"operation_types"`
	Works          int `json:"works"`
	Comments       int `json:"comments"`
	Equipment      int `json:"equipment"`
}

func runSeed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("seed", stderr)
	file := fs.String("file", "", "reference data YAML (required)")
	defaults := fs.Bool("default-operation-types", true, "create the built-in operation types when missing")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if *defaults {
		for _, ot := range domain.DefaultOperationTypes() {
			seed.OperationTypes = append(seed.OperationTypes, seedOperationType{Name: ot.Name, Flags: flagNames(ot.Flags)})
		}
	}

	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	var summary seedSummary
	if _, err := a.service.Transact(ctx, "seed", func(tx domain.Transaction) error {
		var applyErr error
		summary, applyErr = applySeed(tx, seed)
		return applyErr
	}); err != nil {
		return err
	}
	return writeJSON(stdout, summary)
}

// applySeed creates every row that does not exist yet. Users, labware types,
// operation types and works are matched by name; comments by category and
// text; equipment by name.
func applySeed(tx domain.Transaction, seed seedFile) (seedSummary, error) {
	var s seedSummary
	for _, name := range seed.Users {
		if _, ok := tx.FindUser(name); ok {
			continue
		}
		if _, err := tx.CreateUser(domain.User{Username: strings.TrimSpace(name)}); err != nil {
			return s, err
		}
		s.Users++
	}
	for _, lt := range seed.LabwareTypes {
		if _, ok := tx.FindLabwareType(lt.Name); ok {
			continue
		}
		if _, err := tx.CreateLabwareType(domain.LabwareType{Name: lt.Name, Rows: lt.Rows, Columns: lt.Columns}); err != nil {
			return s, err
		}
		s.LabwareTypes++
	}
	for _, ot := range seed.OperationTypes {
		if _, ok := tx.FindOperationType(ot.Name); ok {
			continue
		}
		var flags domain.OperationTypeFlag
		for _, name := range ot.Flags {
			f, ok := operationTypeFlags[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return s, fmt.Errorf("%w: unknown flag %q on operation type %s", domain.ErrIllegalArgument, name, ot.Name)
			}
			flags |= f
		}
		if _, err := tx.CreateOperationType(domain.OperationType{Name: ot.Name, Flags: flags}); err != nil {
			return s, err
		}
		s.OperationTypes++
	}
	for _, w := range seed.Works {
		if _, ok := tx.FindWork(w.WorkNumber); ok {
			continue
		}
		status := domain.WorkStatus(strings.ToLower(strings.TrimSpace(w.Status)))
		if status == "" {
			status = domain.WorkStatusActive
		}
		if _, err := tx.CreateWork(domain.Work{WorkNumber: w.WorkNumber, Status: status}); err != nil {
			return s, err
		}
		s.Works++
	}
	existingComments := make(map[string]bool)
	for _, c := range tx.ListComments() {
		existingComments[c.Category+"\x00"+c.Text] = true
	}
	for _, c := range seed.Comments {
		if existingComments[c.Category+"\x00"+c.Text] {
			continue
		}
		if _, err := tx.CreateComment(domain.Comment{Category: c.Category, Text: c.Text, Enabled: enabled(c.Enabled)}); err != nil {
			return s, err
		}
		existingComments[c.Category+"\x00"+c.Text] = true
		s.Comments++
	}
	existingEquipment := make(map[string]bool)
	for _, e := range tx.ListEquipment() {
		existingEquipment[strings.ToLower(e.Name)] = true
	}
	for _, e := range seed.Equipment {
		if existingEquipment[strings.ToLower(e.Name)] {
			continue
		}
		if _, err := tx.CreateEquipment(domain.Equipment{Name: e.Name, Category: e.Category, Enabled: enabled(e.Enabled)}); err != nil {
			return s, err
		}
		existingEquipment[strings.ToLower(e.Name)] = true
		s.Equipment++
	}
	return s, nil
}

func enabled(v *bool) bool { return v == nil || *v }

func flagNames(flags domain.OperationTypeFlag) []string {
	var out []string
	for _, name := range []string{"in_place", "source_is_block", "discard_source", "result"} {
		if flags&operationTypeFlags[name] != 0 {
			out = append(out, name)
		}
	}
	return out
}
