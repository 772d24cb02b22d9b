// Package translator resolves clause paths against entity metadata and turns
// them into table-aliased column references ready for SQL rendering.
//
// Aliasing rules:
//   - the base table is aliased by its own name;
//   - a joined relation is aliased by its path segments joined with
//     JoinAliasSeparator ("tipo_cliente$usuario_creacion"), shortened with a
//     hash suffix past MaxTableAliasLength;
//   - a selected field is aliased by its table alias, FieldAliasSeparator and
//     the logical field name ("tipo_cliente$$codigo").
//
// Logical field names never contain "$", so distinct paths never share a
// computed alias. An explicit alias shared by two different fields is a
// translation fault.
package translator

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/model"
)

const (
	JoinAliasSeparator  = "$"
	FieldAliasSeparator = "$$"
	wildcard            = "*"
)

// MaxTableAliasLength is the MySQL limit on table alias length.
const MaxTableAliasLength = 64

// Field is a resolved selected column.
type Field struct {
	TableAlias string
	Column     string
	Alias      string
	Aggregate  clause.Aggregate
}

// Filter is a resolved predicate.
type Filter struct {
	TableAlias  string
	Column      string
	Operator    clause.Operator
	Value       any
	Connector   clause.Connector
	OpenParens  int
	CloseParens int
}

// OrderBy is a resolved sort column.
type OrderBy struct {
	TableAlias string
	Column     string
	Direction  clause.Direction
}

// GroupBy is a resolved grouping column.
type GroupBy struct {
	TableAlias string
	Column     string
}

// Join is a resolved join: Alias.ChildColumn = ParentAlias.ParentColumn.
type Join struct {
	Path         string
	Kind         clause.JoinKind
	Table        string
	Alias        string
	ChildColumn  string
	ParentAlias  string
	ParentColumn string
	implicit     bool
}

// AliasEntry maps a field alias back to the entity graph.
type AliasEntry struct {
	// Column is the database column selected under the alias.
	Column string
	// Prefix is the dotted relation path owning the field; empty for base fields.
	Prefix string
	// Field is the logical name of the field within its owner.
	Field string
	// Entity is the metadata of the owning entity.
	Entity *model.EntityType
}

// AliasMap is keyed by field alias.
type AliasMap map[string]AliasEntry

// Result is a fully translated query.
type Result struct {
	Base    *model.EntityType
	Fields  []Field
	Filters []Filter
	Joins   []Join
	GroupBy []GroupBy
	OrderBy []OrderBy
	Offset  *uint64
	Limit   *uint64
	Aliases AliasMap
}

type joinKey struct {
	parentAlias  string
	table        string
	parentColumn string
}

// Translator holds the per-query state shared by the clause kinds: the join
// registry and the alias map. Use one Translator per query.
type Translator struct {
	base    *model.EntityType
	joins   []Join
	byPath  map[string]int
	byKey   map[joinKey]int
	aliases map[string]string
	fields  AliasMap
}

// New returns a Translator rooted at base.
func New(base *model.EntityType) *Translator {
	return &Translator{
		base:    base,
		byPath:  make(map[string]int),
		byKey:   make(map[joinKey]int),
		aliases: map[string]string{base.Table: ""},
		fields:  make(AliasMap),
	}
}

// Translate resolves every clause of q. Explicit joins are registered first so
// that dotted paths in other clauses reuse them.
func Translate(base *model.EntityType, q clause.Query) (*Result, error) {
	t := New(base)
	if _, err := t.Joins(q.Joins); err != nil {
		return nil, err
	}

	selected := q.Fields
	if len(selected) == 0 {
		selected = []clause.Field{{Path: wildcard}}
	}
	fields, err := t.Fields(selected)
	if err != nil {
		return nil, err
	}
	filters, err := t.Filters(q.Filters)
	if err != nil {
		return nil, err
	}
	groupBy, err := t.GroupBy(q.GroupBy)
	if err != nil {
		return nil, err
	}
	orderBy, err := t.OrderBy(q.OrderBy)
	if err != nil {
		return nil, err
	}

	return &Result{
		Base:    base,
		Fields:  fields,
		Filters: filters,
		Joins:   t.RegisteredJoins(),
		GroupBy: groupBy,
		OrderBy: orderBy,
		Offset:  q.Offset,
		Limit:   q.Limit,
		Aliases: t.AliasMap(),
	}, nil
}

// RegisteredJoins returns every join registered so far, explicit and implicit,
// in the order they must be rendered.
func (t *Translator) RegisteredJoins() []Join {
	out := make([]Join, len(t.joins))
	copy(out, t.joins)
	return out
}

// AliasMap returns a copy of the field alias map.
func (t *Translator) AliasMap() AliasMap {
	out := make(AliasMap, len(t.fields))
	for k, v := range t.fields {
		out[k] = v
	}
	return out
}

// Joins resolves explicit join clauses.
func (t *Translator) Joins(joins []clause.Join) ([]Join, error) {
	out := make([]Join, 0, len(joins))
	for _, j := range joins {
		r, err := t.resolve(j.Path, false)
		if err != nil {
			return nil, err
		}
		if !r.def.IsRelation() {
			return nil, dberrors.Translation("cannot join on field %q of entity %s: not a relation", r.name, r.owner.Name)
		}
		target := r.def.TargetType()
		if target == nil {
			return nil, dberrors.Translation("join cannot be resolved: relation %s.%s has no target entity", r.owner.Name, r.name)
		}

		parent, parentKind, err := t.ensureJoins(r.hops)
		if err != nil {
			return nil, err
		}
		if j.ParentTable != "" {
			parent = j.ParentTable
		}

		spec := Join{
			Path:         j.Path,
			Kind:         j.Kind,
			Table:        target.Table,
			Alias:        j.Alias,
			ChildColumn:  j.ChildColumn,
			ParentAlias:  parent,
			ParentColumn: j.ParentColumn,
		}
		if parentKind == clause.Left && spec.Kind == clause.Inner {
			spec.Kind = clause.Left
		}
		if spec.Alias == "" {
			spec.Alias = joinAlias(j.Path)
		} else if len(spec.Alias) > MaxTableAliasLength {
			return nil, dberrors.Translation("join alias %q exceeds %d characters", spec.Alias, MaxTableAliasLength)
		}
		if spec.ChildColumn == "" {
			spec.ChildColumn = target.IDColumn()
		}
		if spec.ParentColumn == "" {
			spec.ParentColumn = r.def.Column
		}

		registered, err := t.register(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, registered)
	}
	return out, nil
}

// Fields resolves field clauses. A path ending in "*" expands to the scalar
// fields of its entity plus a lazy placeholder per relation; a path ending on
// a relation is a lazy placeholder. Placeholders are dropped when another
// clause selects into the same relation.
func (t *Translator) Fields(fields []clause.Field) ([]Field, error) {
	var out []Field
	emit := func(f Field, entry AliasEntry) error {
		if existing, dup := t.fields[f.Alias]; dup {
			if existing.Prefix == entry.Prefix && existing.Field == entry.Field && existing.Entity == entry.Entity {
				return nil
			}
			return dberrors.Translation("field alias %q is used by both %q and %q",
				f.Alias, joinPath(existing.Prefix, existing.Field), joinPath(entry.Prefix, entry.Field))
		}
		t.fields[f.Alias] = entry
		out = append(out, f)
		return nil
	}

	for _, f := range fields {
		r, err := t.resolve(f.Path, true)
		if err != nil {
			return nil, err
		}
		if f.Lazy && r.name != wildcard && !r.def.IsRelation() {
			return nil, dberrors.Translation("lazy load of %q in entity %s requires a relation field", r.name, r.owner.Name)
		}
		tableAlias, _, err := t.ensureJoins(r.hops)
		if err != nil {
			return nil, err
		}
		if f.TableAlias != "" {
			tableAlias = f.TableAlias
		}
		prefix := r.prefix()

		if r.name == wildcard {
			for _, name := range r.owner.Fields.Names() {
				def, _ := r.owner.Field(name)
				if def.IsRelation() {
					if p, entry, ok := t.placeholder(fields, tableAlias, prefix, name, def); ok {
						if err := emit(p, entry); err != nil {
							return nil, err
						}
					}
					continue
				}
				if err := emit(Field{
					TableAlias: tableAlias,
					Column:     def.Column,
					Alias:      fieldAlias(tableAlias, name),
					Aggregate:  f.Aggregate,
				}, AliasEntry{Column: def.Column, Prefix: prefix, Field: name, Entity: r.owner}); err != nil {
					return nil, err
				}
			}
			continue
		}

		if r.def.IsRelation() {
			p, entry, ok := t.placeholder(fields, tableAlias, prefix, r.name, r.def)
			if !ok {
				continue
			}
			if f.Alias != "" {
				p.Alias = f.Alias
			}
			if err := emit(p, entry); err != nil {
				return nil, err
			}
			continue
		}

		alias := f.Alias
		if alias == "" {
			alias = fieldAlias(tableAlias, r.name)
		}
		if err := emit(Field{
			TableAlias: tableAlias,
			Column:     r.def.Column,
			Alias:      alias,
			Aggregate:  f.Aggregate,
		}, AliasEntry{Column: r.def.Column, Prefix: prefix, Field: r.name, Entity: r.owner}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// placeholder selects the foreign key of a relation so the related entity is
// rebuilt holding only its identifier.
func (t *Translator) placeholder(all []clause.Field, ownerAlias, prefix, name string, def model.FieldDefinition) (Field, AliasEntry, bool) {
	relPath := joinPath(prefix, name)
	for _, other := range all {
		if strings.HasPrefix(other.Path, relPath+".") {
			return Field{}, AliasEntry{}, false
		}
	}
	target := def.TargetType()
	if target == nil {
		return Field{}, AliasEntry{}, false
	}

	relAlias := joinAlias(relPath)
	if idx, ok := t.byPath[relPath]; ok {
		relAlias = t.joins[idx].Alias
	}
	return Field{
			TableAlias: ownerAlias,
			Column:     def.Column,
			Alias:      fieldAlias(relAlias, target.IDField),
		}, AliasEntry{
			Column: def.Column,
			Prefix: relPath,
			Field:  target.IDField,
			Entity: target,
		}, true
}

// Filters resolves filter clauses.
func (t *Translator) Filters(filters []clause.Filter) ([]Filter, error) {
	out := make([]Filter, 0, len(filters))
	for _, f := range filters {
		alias, column, err := t.column(f.Path, f.TableAlias)
		if err != nil {
			return nil, err
		}
		out = append(out, Filter{
			TableAlias:  alias,
			Column:      column,
			Operator:    f.Operator,
			Value:       f.Value,
			Connector:   f.Connector,
			OpenParens:  f.OpenParens,
			CloseParens: f.CloseParens,
		})
	}
	return out, nil
}

// OrderBy resolves order by clauses.
func (t *Translator) OrderBy(orders []clause.OrderBy) ([]OrderBy, error) {
	out := make([]OrderBy, 0, len(orders))
	for _, o := range orders {
		alias, column, err := t.column(o.Path, o.TableAlias)
		if err != nil {
			return nil, err
		}
		out = append(out, OrderBy{TableAlias: alias, Column: column, Direction: o.Direction})
	}
	return out, nil
}

// GroupBy resolves group by clauses.
func (t *Translator) GroupBy(groups []clause.GroupBy) ([]GroupBy, error) {
	out := make([]GroupBy, 0, len(groups))
	for _, g := range groups {
		alias, column, err := t.column(g.Path, g.TableAlias)
		if err != nil {
			return nil, err
		}
		out = append(out, GroupBy{TableAlias: alias, Column: column})
	}
	return out, nil
}

func (t *Translator) column(path, explicitAlias string) (string, string, error) {
	r, err := t.resolve(path, false)
	if err != nil {
		return "", "", err
	}
	alias, _, err := t.ensureJoins(r.hops)
	if err != nil {
		return "", "", err
	}
	if explicitAlias != "" {
		alias = explicitAlias
	}
	return alias, r.def.Column, nil
}

// ensureJoins registers an implicit join for every hop not joined yet and
// returns the alias and kind of the last hop. With no hops it returns the
// base table.
func (t *Translator) ensureJoins(hops []hop) (string, clause.JoinKind, error) {
	parent := t.base.Table
	parentKind := clause.Inner
	for _, h := range hops {
		if idx, ok := t.byPath[h.path]; ok {
			parent, parentKind = t.joins[idx].Alias, t.joins[idx].Kind
			continue
		}
		kind := clause.Left
		if h.def.Mandatory && parentKind != clause.Left {
			kind = clause.Inner
		}
		registered, err := t.register(Join{
			Path:         h.path,
			Kind:         kind,
			Table:        h.target.Table,
			Alias:        joinAlias(h.path),
			ChildColumn:  h.target.IDColumn(),
			ParentAlias:  parent,
			ParentColumn: h.def.Column,
			implicit:     true,
		})
		if err != nil {
			return "", 0, err
		}
		parent, parentKind = registered.Alias, registered.Kind
	}
	return parent, parentKind, nil
}

// register adds a join unless an equivalent one (same parent, table and
// parent column) already exists, in which case the existing join is returned.
func (t *Translator) register(j Join) (Join, error) {
	key := joinKey{parentAlias: j.ParentAlias, table: j.Table, parentColumn: j.ParentColumn}
	if idx, ok := t.byKey[key]; ok {
		existing := &t.joins[idx]
		if existing.implicit && !j.implicit {
			existing.Kind = j.Kind
			existing.implicit = false
		}
		t.byPath[j.Path] = idx
		return *existing, nil
	}
	if owner, taken := t.aliases[j.Alias]; taken && owner != j.Path {
		return Join{}, dberrors.Translation("join alias %q for %q is already used", j.Alias, j.Path)
	}

	t.joins = append(t.joins, j)
	idx := len(t.joins) - 1
	t.byKey[key] = idx
	t.byPath[j.Path] = idx
	t.aliases[j.Alias] = j.Path
	return j, nil
}

type hop struct {
	path   string
	def    model.FieldDefinition
	target *model.EntityType
}

type resolved struct {
	segments []string
	hops     []hop
	owner    *model.EntityType
	name     string
	def      model.FieldDefinition
}

func (r resolved) prefix() string {
	return strings.Join(r.segments[:len(r.segments)-1], ".")
}

// resolve walks a dotted path against metadata. Every segment but the last
// must be a relation with a resolvable target.
func (t *Translator) resolve(path string, allowWildcard bool) (resolved, error) {
	if strings.TrimSpace(path) == "" {
		return resolved{}, dberrors.Translation("empty field path in entity %s", t.base.Name)
	}
	segments := strings.Split(path, ".")
	r := resolved{segments: segments}
	owner := t.base

	for i, seg := range segments {
		last := i == len(segments)-1
		if last && seg == wildcard && allowWildcard {
			r.owner, r.name = owner, seg
			return r, nil
		}
		def, ok := owner.Field(seg)
		if !ok {
			return resolved{}, dberrors.Translation("unknown field %q in entity %s", seg, owner.Name)
		}
		if last {
			r.owner, r.name, r.def = owner, seg, def
			return r, nil
		}
		if !def.IsRelation() {
			return resolved{}, dberrors.Translation("field %q of entity %s is not a relation in path %q", seg, owner.Name, path)
		}
		target := def.TargetType()
		if target == nil {
			return resolved{}, dberrors.Translation("join cannot be resolved: relation %s.%s has no target entity", owner.Name, seg)
		}
		r.hops = append(r.hops, hop{
			path:   strings.Join(segments[:i+1], "."),
			def:    def,
			target: target,
		})
		owner = target
	}
	return r, nil
}

// joinAlias derives the table alias of a relation path. Aliases longer than
// MaxTableAliasLength keep a prefix of the path and end in a hash of the
// whole path.
func joinAlias(path string) string {
	alias := strings.ReplaceAll(path, ".", JoinAliasSeparator)
	if len(alias) <= MaxTableAliasLength {
		return alias
	}
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(path))
	keep := MaxTableAliasLength - len(JoinAliasSeparator) - len(sum)
	return strings.TrimRight(alias[:keep], JoinAliasSeparator) + JoinAliasSeparator + sum
}

func fieldAlias(tableAlias, field string) string {
	return tableAlias + FieldAliasSeparator + field
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
