package builder

import (
	"slices"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// parentWrite is the create or update node nested writes attach to.
type parentWrite struct {
	id     graph.NodeID
	model  *schema.Model
	args   *query.WriteArgs
	create bool
}

func (b *builder) nestedWrites(p parentWrite, writes []nestedWrite) error {
	for _, w := range writes {
		if err := b.nestedWrite(p, w); err != nil {
			return err
		}
	}
	return b.err
}

func (b *builder) nestedWrite(p parentWrite, w nestedWrite) error {
	rf := w.rf
	if !rf.List {
		switch w.op {
		case "set", "createMany", "updateMany", "deleteMany":
			return errorf(ErrInvalidNestedOperation, rf.Model().Name, rf.Name, "%s requires a list relation", w.op)
		}
		if _, isList := w.value.(ir.IRArray); isList {
			return errorf(ErrInvalidNestedOperation, rf.Model().Name, rf.Name, "%s on a to-one relation takes a single value", w.op)
		}
	}

	switch w.op {
	case "create":
		for _, item := range listOf(w.value) {
			if err := b.nestedCreate(p, rf, item); err != nil {
				return err
			}
		}
	case "createMany":
		return b.nestedCreateMany(p, rf, w.value)
	case "connect":
		return b.nestedConnect(p, rf, w.value)
	case "connectOrCreate":
		for _, item := range listOf(w.value) {
			if err := b.nestedConnectOrCreate(p, rf, item); err != nil {
				return err
			}
		}
	case "disconnect":
		return b.nestedDisconnect(p, rf, w.value)
	case "set":
		return b.nestedSet(p, rf, w.value)
	case "update":
		for _, item := range listOf(w.value) {
			if err := b.nestedUpdate(p, rf, item); err != nil {
				return err
			}
		}
	case "updateMany":
		for _, item := range listOf(w.value) {
			if err := b.nestedUpdateMany(p, rf, item); err != nil {
				return err
			}
		}
	case "upsert":
		for _, item := range listOf(w.value) {
			if err := b.nestedUpsert(p, rf, item); err != nil {
				return err
			}
		}
	case "delete":
		return b.nestedDelete(p, rf, w.value)
	case "deleteMany":
		for _, item := range listOf(w.value) {
			if err := b.nestedDeleteMany(p, rf, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// columns returns the primary key of m followed by extra fields.
func columns(m *schema.Model, extra ...string) []string {
	return query.WithColumns(slices.Clone(m.PrimaryKey), extra...)
}

func nullArgs(fields []string) *query.WriteArgs {
	args := query.NewWriteArgs()
	for _, f := range fields {
		args.Set(f, ir.IRNull{})
	}
	return args
}

// linkToChild lands the parent's linking values in the child's foreign
// key. The edge runs parent -> child.
func (b *builder) linkToChild(rf *schema.RelationField) graph.Dependency {
	return graph.Data(rf.LinkingFields(), graph.Sink{
		Kind:   graph.SinkWriteArgs,
		Fields: rf.RelatedField().LinkingFields(),
		One:    true,
	}).Expecting(nonEmpty(), b.violation(graph.RecordNotFound, rf.Model(), ""))
}

// linkToParent lands the child's linking values in the parent's foreign
// key. The edge runs child -> parent once flipped.
func (b *builder) linkToParent(rf *schema.RelationField) graph.Dependency {
	return graph.Data(rf.RelatedField().LinkingFields(), graph.Sink{
		Kind:   graph.SinkWriteArgs,
		Fields: rf.Fields,
		One:    true,
	}).Expecting(nonEmpty(), b.violation(graph.RecordNotFound, rf.RelatedModel(), rf.Relation))
}

// connectedTo restricts a query on the related model to the records
// connected to the parent.
func (b *builder) connectedTo(rf *schema.RelationField) graph.Dependency {
	sink := graph.Sink{Kind: graph.SinkSelector, Fields: rf.RelatedField().LinkingFields(), One: true}
	if rf.IsManyToMany() {
		sink = graph.Sink{Kind: graph.SinkSelector, Relation: rf.RelatedField().Name, One: true}
	}
	return graph.Data(rf.LinkingFields(), sink).
		Expecting(nonEmpty(), b.violation(graph.RecordNotFound, rf.Model(), ""))
}

func (b *builder) connectParent(p parentWrite, k graph.NodeID, rf *schema.RelationField) {
	b.edge(p.id, k, graph.Data(rf.LinkingFields(), graph.Sink{Kind: graph.SinkConnectParent, One: true}).
		Expecting(nonEmpty(), b.violation(graph.RecordNotFound, rf.Model(), "")))
}

func connectChildren(rf *schema.RelationField) graph.Dependency {
	return graph.Data(rf.RelatedField().LinkingFields(), graph.Sink{Kind: graph.SinkConnectChildren})
}

func (b *builder) linkNode(rf *schema.RelationField, connect bool) graph.NodeID {
	if connect {
		return b.node(&graph.Write{Query: &query.ConnectRecords{ParentField: rf}})
	}
	return b.node(&graph.Write{Query: &query.DisconnectRecords{ParentField: rf}})
}

// detachCurrent runs before a new child is linked to an updated parent of
// a one-to-one relation whose foreign key lives on the child. The current
// child is unlinked, or the request fails when its key is required. It
// returns the node the new link must follow.
func (b *builder) detachCurrent(p parentWrite, rf *schema.RelationField) graph.NodeID {
	if p.create || rf.List || rf.IsManyToMany() || !rf.IsInlinedOnRelatedModel() {
		return p.id
	}
	child := rf.RelatedModel()
	if rf.ForeignKeyRequired() {
		r := b.node(&graph.Read{Query: &query.RecordQuery{Model: child, Filter: filter.Empty{}, Columns: columns(child)}})
		b.edge(p.id, r, b.connectedTo(rf))
		return b.check(r, child, empty(), b.violation(graph.RelationViolation, child, rf.Relation))
	}
	u := b.node(&graph.Write{Query: &query.UpdateManyRecords{
		Model:  child,
		Filter: filter.Empty{},
		Args:   nullArgs(rf.RelatedField().Fields),
	}})
	b.edge(p.id, u, b.connectedTo(rf))
	return u
}

// after orders n after prev unless prev is the parent itself.
func (b *builder) after(p parentWrite, prev, n graph.NodeID) {
	if prev != p.id {
		b.edge(prev, n, graph.Order())
	}
}

func (b *builder) nestedCreate(p parentWrite, rf *schema.RelationField, data ir.IRValue) error {
	child := rf.RelatedModel()
	c, err := b.createRecord(child, data, rf)
	if err != nil {
		return err
	}
	switch {
	case rf.IsManyToMany():
		b.edge(p.id, c, graph.Order())
		k := b.linkNode(rf, true)
		b.connectParent(p, k, rf)
		b.edge(c, k, connectChildren(rf))
	case rf.IsInlinedOnEnclosingModel():
		b.edge(p.id, c, b.linkToParent(rf))
		b.g.MarkNodes(p.id, c)
	default:
		b.after(p, b.detachCurrent(p, rf), c)
		b.edge(p.id, c, b.linkToChild(rf))
	}
	return nil
}

func (b *builder) nestedCreateMany(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	if rf.IsManyToMany() {
		return errorf(ErrInvalidNestedOperation, rf.Model().Name, rf.Name, "createMany is not supported on many-to-many relations")
	}
	obj, err := objectArg(child, "createMany", value)
	if err != nil {
		return err
	}
	q := &query.CreateManyRecords{Model: child}
	for _, k := range obj.SortedKeys() {
		switch k {
		case "data":
			for _, item := range listOf(obj[k]) {
				args, err := b.parsePlainData(child, item, true)
				if err != nil {
					return err
				}
				q.Args = append(q.Args, args)
			}
		case "skipDuplicates":
			if q.SkipDuplicates, err = boolArg(child, k, obj[k]); err != nil {
				return err
			}
		default:
			return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "unknown createMany argument %q", k)
		}
	}
	n := b.node(&graph.Write{Query: q})
	b.edge(p.id, n, b.linkToChild(rf))
	return nil
}

func (b *builder) nestedConnect(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	filters, err := uniqueFilters(child, value)
	if err != nil {
		return err
	}
	notFound := b.violation(graph.RecordNotFound, child, rf.Relation)

	switch {
	case rf.IsManyToMany():
		r := b.node(&graph.Read{Query: &query.ManyRecordsQuery{
			Model:   child,
			Args:    query.QueryArguments{Filter: filter.OrOf(filters...)},
			Columns: columns(child),
		}})
		b.edge(p.id, r, graph.Order())
		k := b.linkNode(rf, true)
		b.connectParent(p, k, rf)
		b.edge(r, k, connectChildren(rf).Expecting(count(len(filters)), notFound))
	case rf.IsInlinedOnEnclosingModel():
		r := b.node(&graph.Read{Query: &query.RecordQuery{
			Model:   child,
			Filter:  filters[0],
			Columns: columns(child, rf.RelatedField().LinkingFields()...),
		}})
		b.edge(p.id, r, b.linkToParent(rf))
		b.g.MarkNodes(p.id, r)
	default:
		prev := b.detachCurrent(p, rf)
		u := b.node(&graph.Write{Query: &query.UpdateManyRecords{
			Model:  child,
			Filter: filter.OrOf(filters...),
			Args:   query.NewWriteArgs(),
		}})
		b.after(p, prev, u)
		b.edge(p.id, u, b.linkToChild(rf))
		b.check(u, child, count(len(filters)), notFound)
	}
	return nil
}

// nestedConnectOrCreate reads the record named by where and branches on
// it: Then connects it, Else creates it already connected.
func (b *builder) nestedConnectOrCreate(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	where, create, err := twoArgs(rf, value, "where", "create")
	if err != nil {
		return err
	}
	f, err := ExtractUniqueFilter(child, where)
	if err != nil {
		return err
	}

	r := b.node(&graph.Read{Query: &query.RecordQuery{
		Model:   child,
		Filter:  f,
		Columns: columns(child, rf.RelatedField().LinkingFields()...),
	}})
	i := b.node(&graph.If{})
	b.edge(r, i, graph.Data(pkOf(child), graph.Sink{Kind: graph.SinkIf}))

	switch {
	case rf.IsManyToMany():
		b.edge(p.id, r, graph.Order())
		k := b.linkNode(rf, true)
		b.edge(i, k, graph.ThenBranch())
		b.connectParent(p, k, rf)
		b.edge(r, k, connectChildren(rf))

		c, err := b.createRecord(child, create, rf)
		if err != nil {
			return err
		}
		b.edge(i, c, graph.ElseBranch())
		k2 := b.linkNode(rf, true)
		b.connectParent(p, k2, rf)
		b.edge(c, k2, connectChildren(rf))

	case rf.IsInlinedOnEnclosingModel():
		// The parent needs the key before it is written: the read and
		// the branch move in front of it, and a second read after the
		// branch feeds whichever record now exists.
		c, err := b.createRecord(child, create, rf)
		if err != nil {
			return err
		}
		b.edge(i, c, graph.ElseBranch())
		b.edge(p.id, r, graph.Order())
		b.g.MarkNodes(p.id, r)
		r2 := b.node(&graph.Read{Query: &query.RecordQuery{
			Model:   child,
			Filter:  f,
			Columns: columns(child, rf.RelatedField().LinkingFields()...),
		}})
		b.edge(i, r2, graph.Order())
		b.edge(r2, p.id, b.linkToParent(rf))

	default:
		b.after(p, b.detachCurrent(p, rf), r)
		b.edge(p.id, r, graph.Order())
		u := b.node(&graph.Write{Query: &query.UpdateManyRecords{Model: child, Filter: f, Args: query.NewWriteArgs()}})
		b.edge(i, u, graph.ThenBranch())
		b.edge(p.id, u, b.linkToChild(rf))

		c, err := b.createRecord(child, create, rf)
		if err != nil {
			return err
		}
		b.edge(i, c, graph.ElseBranch())
		b.edge(p.id, c, b.linkToChild(rf))
	}
	return nil
}

func (b *builder) nestedDisconnect(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	if !rf.List {
		on, ok := value.(ir.IRBool)
		if !ok {
			return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "disconnect on a to-one relation takes true or false")
		}
		if !on {
			return nil
		}
		if rf.ForeignKeyRequired() {
			return errorf(ErrRelationViolation, rf.Model().Name, rf.Name, "cannot disconnect the required relation %s", rf.Relation)
		}
		if rf.IsInlinedOnEnclosingModel() {
			for _, fk := range rf.Fields {
				p.args.Set(fk, ir.IRNull{})
			}
			return nil
		}
		u := b.node(&graph.Write{Query: &query.UpdateManyRecords{
			Model:  child,
			Filter: filter.Empty{},
			Args:   nullArgs(rf.RelatedField().Fields),
		}})
		b.edge(p.id, u, b.connectedTo(rf))
		return nil
	}

	filters, err := uniqueFilters(child, value)
	if err != nil {
		return err
	}
	if rf.IsManyToMany() {
		r := b.node(&graph.Read{Query: &query.ManyRecordsQuery{
			Model:   child,
			Args:    query.QueryArguments{Filter: filter.OrOf(filters...)},
			Columns: columns(child),
		}})
		b.edge(p.id, r, graph.Order())
		d := b.linkNode(rf, false)
		b.connectParent(p, d, rf)
		b.edge(r, d, connectChildren(rf))
		return nil
	}
	if rf.ForeignKeyRequired() {
		return errorf(ErrRelationViolation, rf.Model().Name, rf.Name, "cannot disconnect the required relation %s", rf.Relation)
	}
	u := b.node(&graph.Write{Query: &query.UpdateManyRecords{
		Model:  child,
		Filter: filter.OrOf(filters...),
		Args:   nullArgs(rf.RelatedField().Fields),
	}})
	b.edge(p.id, u, b.connectedTo(rf))
	return nil
}

// nestedSet replaces the children of a list relation with exactly the
// named records.
func (b *builder) nestedSet(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	filters, err := uniqueFilters(child, value)
	if err != nil {
		return err
	}
	notFound := b.violation(graph.RecordNotFound, child, rf.Relation)
	pk := pkOf(child)

	if rf.IsManyToMany() {
		// old: currently connected, cur: requested. Diffs of the two
		// decide what is disconnected and what is connected.
		old := b.node(&graph.Read{Query: &query.ManyRecordsQuery{Model: child, Columns: columns(child)}})
		b.edge(p.id, old, b.connectedTo(rf))
		cur := b.node(&graph.Read{Query: &query.ManyRecordsQuery{
			Model:   child,
			Args:    query.QueryArguments{Filter: filter.OrOf(filters...)},
			Columns: columns(child),
		}})
		b.edge(old, cur, graph.Order())

		gone := b.node(&graph.Diff{Direction: graph.LeftToRight})
		b.edge(old, gone, graph.Data(pk, graph.Sink{Kind: graph.SinkDiffLeft}))
		b.edge(cur, gone, graph.Data(pk, graph.Sink{Kind: graph.SinkDiffRight}).Expecting(count(len(filters)), notFound))
		d := b.linkNode(rf, false)
		b.connectParent(p, d, rf)
		b.edge(gone, d, connectChildren(rf))

		added := b.node(&graph.Diff{Direction: graph.RightToLeft})
		b.edge(old, added, graph.Data(pk, graph.Sink{Kind: graph.SinkDiffLeft}))
		b.edge(cur, added, graph.Data(pk, graph.Sink{Kind: graph.SinkDiffRight}))
		k := b.linkNode(rf, true)
		b.connectParent(p, k, rf)
		b.edge(added, k, connectChildren(rf))
		return nil
	}

	if rf.ForeignKeyRequired() {
		return errorf(ErrRelationViolation, rf.Model().Name, rf.Name, "set would orphan children of the required relation %s", rf.Relation)
	}
	clear := b.node(&graph.Write{Query: &query.UpdateManyRecords{
		Model:  child,
		Filter: filter.Empty{},
		Args:   nullArgs(rf.RelatedField().Fields),
	}})
	b.edge(p.id, clear, b.connectedTo(rf))
	u := b.node(&graph.Write{Query: &query.UpdateManyRecords{
		Model:  child,
		Filter: filter.OrOf(filters...),
		Args:   query.NewWriteArgs(),
	}})
	b.edge(clear, u, graph.Order())
	b.edge(p.id, u, b.linkToChild(rf))
	b.check(u, child, count(len(filters)), notFound)
	return nil
}

func (b *builder) nestedUpdate(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	var f filter.Filter = filter.Empty{}
	data := value
	if rf.List {
		where, d, err := twoArgs(rf, value, "where", "data")
		if err != nil {
			return err
		}
		if f, err = ExtractUniqueFilter(child, where); err != nil {
			return err
		}
		data = d
	}
	u, nested, err := b.updateNode(child, f, data, rf)
	if err != nil {
		return err
	}
	b.edge(p.id, u.id, b.connectedTo(rf))
	b.check(u.id, child, nonEmpty(), b.violation(graph.RecordsNotConnected, child, rf.Relation))
	return b.nestedWrites(u, nested)
}

func (b *builder) nestedUpdateMany(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	where, data, err := twoArgs(rf, value, "where", "data")
	if err != nil {
		return err
	}
	f, err := Filter(child, where)
	if err != nil {
		return err
	}
	args, err := b.parsePlainData(child, data, false)
	if err != nil {
		return err
	}
	u := b.node(&graph.Write{Query: &query.UpdateManyRecords{Model: child, Filter: f, Args: args}})
	b.edge(p.id, u, b.connectedTo(rf))
	return nil
}

// nestedUpsert reads the connected record and branches: Then updates it,
// Else creates a new one and links it to the parent.
func (b *builder) nestedUpsert(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	obj, err := objectArg(child, "upsert", value)
	if err != nil {
		return err
	}
	for _, k := range obj.SortedKeys() {
		if k != "where" && k != "create" && k != "update" {
			return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "unknown upsert argument %q", k)
		}
	}
	createData, hasCreate := obj["create"]
	updateData, hasUpdate := obj["update"]
	if !hasCreate || !hasUpdate {
		return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "upsert requires create and update")
	}
	var f filter.Filter = filter.Empty{}
	if where, ok := obj["where"]; ok {
		if f, err = ExtractUniqueFilter(child, where); err != nil {
			return err
		}
	} else if rf.List {
		return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "upsert on a list relation requires where")
	}

	r := b.node(&graph.Read{Query: &query.RecordQuery{
		Model:   child,
		Filter:  f,
		Columns: columns(child, rf.RelatedField().LinkingFields()...),
	}})
	b.edge(p.id, r, b.connectedTo(rf))
	i := b.node(&graph.If{})
	b.edge(r, i, graph.Data(pkOf(child), graph.Sink{Kind: graph.SinkIf}))

	u, nested, err := b.updateNode(child, filter.Empty{}, updateData, rf)
	if err != nil {
		return err
	}
	b.edge(i, u.id, graph.ThenBranch())
	b.edge(r, u.id, graph.Data(pkOf(child), graph.Sink{Kind: graph.SinkSelector, One: true}))
	if err := b.nestedWrites(u, nested); err != nil {
		return err
	}

	c, err := b.createRecord(child, createData, rf)
	if err != nil {
		return err
	}
	b.edge(i, c, graph.ElseBranch())
	switch {
	case rf.IsManyToMany():
		k := b.linkNode(rf, true)
		b.connectParent(p, k, rf)
		b.edge(c, k, connectChildren(rf))
	case rf.IsInlinedOnEnclosingModel():
		// The parent already ran; point its key at the new record.
		pu := b.node(&graph.Write{Query: &query.UpdateRecord{Model: p.model, Filter: filter.Empty{}, Args: query.NewWriteArgs()}})
		b.edge(p.id, pu, graph.Data(pkOf(p.model), graph.Sink{Kind: graph.SinkSelector, One: true}))
		b.edge(c, pu, b.linkToParent(rf))
	default:
		b.edge(p.id, c, b.linkToChild(rf))
	}
	return nil
}

func (b *builder) nestedDelete(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	notConnected := b.violation(graph.RecordsNotConnected, child, rf.Relation)
	if !rf.List {
		on, ok := value.(ir.IRBool)
		if !ok {
			return errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "delete on a to-one relation takes true or false")
		}
		if !on {
			return nil
		}
		if rf.IsInlinedOnEnclosingModel() && rf.ForeignKeyRequired() {
			return errorf(ErrRelationViolation, rf.Model().Name, rf.Name, "cannot delete the required %s", rf.Name)
		}
		d := b.node(&graph.Write{Query: &query.DeleteRecord{Model: child, Filter: filter.Empty{}}})
		b.edge(p.id, d, b.connectedTo(rf))
		b.check(d, child, nonEmpty(), notConnected)
		return nil
	}

	filters, err := uniqueFilters(child, value)
	if err != nil {
		return err
	}
	for _, f := range filters {
		d := b.node(&graph.Write{Query: &query.DeleteRecord{Model: child, Filter: f}})
		b.edge(p.id, d, b.connectedTo(rf))
		b.check(d, child, nonEmpty(), notConnected)
	}
	return nil
}

func (b *builder) nestedDeleteMany(p parentWrite, rf *schema.RelationField, value ir.IRValue) error {
	child := rf.RelatedModel()
	f, err := Filter(child, value)
	if err != nil {
		return err
	}
	d := b.node(&graph.Write{Query: &query.DeleteManyRecords{Model: child, Filter: f}})
	b.edge(p.id, d, b.connectedTo(rf))
	return nil
}

// twoArgs reads an object holding exactly the keys a and c.
func twoArgs(rf *schema.RelationField, value ir.IRValue, a, c string) (ir.IRValue, ir.IRValue, error) {
	obj, ok := value.(ir.IRObject)
	if !ok || len(obj) != 2 {
		return nil, nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "expected an object with %s and %s", a, c)
	}
	va, okA := obj[a]
	vc, okC := obj[c]
	if !okA || !okC {
		return nil, nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "expected an object with %s and %s", a, c)
	}
	return va, vc, nil
}
