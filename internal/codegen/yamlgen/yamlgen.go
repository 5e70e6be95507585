// Package yamlgen dumps resolved modules as YAML descriptors.
package yamlgen

import (
	"bytes"
	"path"

	"gopkg.in/yaml.v3"

	"idlc/internal/codegen"
	"idlc/internal/diag"
	"idlc/internal/ir"
)

const Target = "yaml"

type Backend struct{}

func init() {
	codegen.Register(Backend{})
}

func (Backend) Target() string { return Target }

func (Backend) Emit(schema *ir.Schema, module string, cfg *codegen.Config) ([]codegen.OutputUnit, error) {
	if module == "" {
		doc := SchemaDoc{}
		for _, m := range schema.Modules {
			if cfg.WantsModule(m) {
				doc.Modules = append(doc.Modules, describeModule(m, cfg))
			}
		}
		out, err := encode(doc)
		if err != nil {
			return nil, &codegen.Error{Code: diag.GenBackendFailed, Msg: "yaml", Err: err}
		}
		return []codegen.OutputUnit{{Path: cfg.OutPath("schema.yaml"), Content: out}}, nil
	}

	m := schema.Module(module)
	if m == nil {
		return nil, codegen.Errorf(diag.GenBackendFailed, module, "module is not part of the schema")
	}
	out, err := encode(describeModule(m, cfg))
	if err != nil {
		return nil, &codegen.Error{Code: diag.GenBackendFailed, Module: module, Msg: "yaml", Err: err}
	}
	dir := cfg.ModuleDir(m.Path, path.Dir(m.Path))
	return []codegen.OutputUnit{{
		Path:    cfg.OutPath(path.Join(dir, codegen.ModuleStem(m.Path)+".yaml")),
		Module:  module,
		Content: out,
	}}, nil
}

// Dump renders the whole schema, including emission order and module
// batches.
func Dump(schema *ir.Schema) ([]byte, error) {
	cfg := codegen.DefaultConfig()
	doc := SchemaDoc{
		ModuleBatches: schema.ModuleBatches,
		ModuleCycles:  schema.ModuleCycles,
		ModuleDeps:    schema.ModuleDeps,
	}
	for _, m := range schema.Modules {
		doc.Modules = append(doc.Modules, describeModule(m, cfg))
	}
	for _, ref := range schema.EmitOrder {
		doc.EmitOrder = append(doc.EmitOrder, ref.String())
	}
	for _, g := range schema.CycleGroups {
		names := make([]string, len(g))
		for i, ref := range g {
			names[i] = ref.String()
		}
		doc.CycleGroups = append(doc.CycleGroups, names)
	}
	return encode(doc)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
