package algebrizer

import (
	"fmt"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

var refTypes = datalog.TypeSetOf(datalog.TypeRef)

func (cc *ConstraintContext) applyPattern(p *query.Pattern) error {
	alias := cc.addTable(TableDatoms, nil)
	col := func(name string) QualifiedColumn {
		return QualifiedColumn{Alias: alias, Column: name}
	}
	slots := p.Slots()

	if err := cc.applyRefSlot(slots[0], col(ColumnEntity)); err != nil {
		return err
	}

	var attr *schema.Attribute
	switch a := slots[1].(type) {
	case query.Constant:
		resolved, err := cc.resolveAttribute(a.Value)
		if err != nil {
			return err
		}
		attr = resolved
		cc.Wheres = append(cc.Wheres, ValueEquals{Column: col(ColumnAttribute), Value: datalog.Ref(attr.Entid)})
	case query.Variable:
		if val, ok := cc.ValueBindings[a.Name]; ok && val.Type == datalog.TypeKeyword {
			// An ident supplied for an attribute variable names the attribute.
			resolved, err := cc.resolveAttribute(val.V)
			if err != nil {
				return err
			}
			attr = resolved
			cc.Wheres = append(cc.Wheres, ValueEquals{Column: col(ColumnAttribute), Value: datalog.Ref(attr.Entid)})
			break
		}
		if val, ok := cc.ValueBindings[a.Name]; ok && val.Type == datalog.TypeRef {
			e, _ := val.AsEntid()
			resolved, err := cc.resolveAttribute(e)
			if err != nil {
				return err
			}
			attr = resolved
		}
		if err := cc.narrow(a.Name, refTypes); err != nil {
			return err
		}
		cc.bindColumn(a.Name, col(ColumnAttribute))
	}

	switch v := slots[2].(type) {
	case query.Variable:
		if attr != nil {
			if err := cc.narrow(v.Name, datalog.TypeSetOf(attr.ValueType)); err != nil {
				return err
			}
		} else {
			cc.untyped = append(cc.untyped, untypedValue{Var: v.Name, Column: col(ColumnValue)})
		}
		cc.bindColumn(v.Name, col(ColumnValue))
	case query.Constant:
		var val datalog.TypedValue
		if attr != nil {
			coerced, err := cc.coerceConstant(v.Value, attr.ValueType)
			if err != nil {
				return err
			}
			val = coerced
		} else {
			tv, ok := datalog.ValueOf(v.Value)
			if !ok {
				return &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Literal: v.String()}
			}
			val = tv
		}
		cc.Wheres = append(cc.Wheres, ValueEquals{Column: col(ColumnValue), Value: val})
	}

	return cc.applyRefSlot(slots[3], col(ColumnTx))
}

// applyRefSlot handles the entity and transaction slots.
func (cc *ConstraintContext) applyRefSlot(elem query.PatternElement, col QualifiedColumn) error {
	switch e := elem.(type) {
	case query.Variable:
		if err := cc.narrow(e.Name, refTypes); err != nil {
			return err
		}
		cc.bindColumn(e.Name, col)
	case query.Constant:
		entid, err := cc.resolveEntid(e.Value)
		if err != nil {
			return err
		}
		cc.Wheres = append(cc.Wheres, ValueEquals{Column: col, Value: datalog.Ref(entid)})
	}
	return nil
}

// resolveEntid turns an entity constant into an entid. Keywords are idents.
func (cc *ConstraintContext) resolveEntid(raw interface{}) (datalog.Entid, error) {
	if kw, ok := asKeyword(raw); ok {
		e, found := cc.schema.EntidForIdent(kw)
		if !found {
			return 0, &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: kw.String()}
		}
		return e, nil
	}
	tv, ok := datalog.ValueOf(raw)
	if !ok {
		return 0, &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Literal: fmt.Sprintf("%v", raw), ExpectedType: datalog.TypeRef}
	}
	switch tv.Type {
	case datalog.TypeRef:
		e, _ := tv.AsEntid()
		return e, nil
	case datalog.TypeLong:
		n, _ := tv.AsLong()
		return datalog.Entid(n), nil
	}
	return 0, &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Literal: tv.String(), Type: tv.Type, ExpectedType: datalog.TypeRef}
}

// resolveAttribute looks up an attribute by ident or entid.
func (cc *ConstraintContext) resolveAttribute(raw interface{}) (*schema.Attribute, error) {
	if kw, ok := asKeyword(raw); ok {
		attr, found := cc.schema.AttributeForIdent(kw)
		if !found {
			return nil, &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: kw.String()}
		}
		return attr, nil
	}
	e, err := cc.resolveEntid(raw)
	if err != nil {
		return nil, err
	}
	attr, found := cc.schema.AttributeForEntid(e)
	if !found {
		return nil, &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: fmt.Sprintf("%d", e)}
	}
	return attr, nil
}

// coerceConstant converts a literal to the attribute's value type: idents
// become entids for refs, longs widen to doubles and name entids.
func (cc *ConstraintContext) coerceConstant(raw interface{}, want datalog.ValueType) (datalog.TypedValue, error) {
	if kw, ok := asKeyword(raw); ok {
		switch want {
		case datalog.TypeRef:
			e, err := cc.resolveEntid(kw)
			if err != nil {
				return datalog.TypedValue{}, err
			}
			return datalog.Ref(e), nil
		case datalog.TypeKeyword:
			return datalog.KeywordValue(kw), nil
		}
	}
	tv, ok := datalog.ValueOf(raw)
	if !ok {
		return datalog.TypedValue{}, &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Literal: fmt.Sprintf("%v", raw), ExpectedType: want}
	}
	if tv.Type == want {
		return tv, nil
	}
	if n, isLong := tv.AsLong(); isLong {
		switch want {
		case datalog.TypeRef:
			return datalog.Ref(datalog.Entid(n)), nil
		case datalog.TypeDouble:
			return datalog.Double(float64(n)), nil
		}
	}
	return datalog.TypedValue{}, &datalog.Error{
		Kind:         datalog.ErrValueTypeMismatch,
		Literal:      tv.String(),
		Type:         tv.Type,
		ExpectedType: want,
	}
}

// coerceToTypes converts a literal to one of the allowed types, resolving
// idents when only refs are allowed.
func (cc *ConstraintContext) coerceToTypes(raw interface{}, allowed datalog.ValueTypeSet) (datalog.TypedValue, bool, error) {
	if kw, ok := asKeyword(raw); ok && !allowed.Contains(datalog.TypeKeyword) && allowed.Contains(datalog.TypeRef) {
		e, err := cc.resolveEntid(kw)
		if err != nil {
			return datalog.TypedValue{}, false, err
		}
		return datalog.Ref(e), true, nil
	}
	tv, ok := datalog.ValueOf(raw)
	if !ok {
		return datalog.TypedValue{}, false, nil
	}
	if allowed.Contains(tv.Type) {
		return tv, true, nil
	}
	if n, isLong := tv.AsLong(); isLong {
		if allowed.Contains(datalog.TypeRef) && !allowed.Contains(datalog.TypeDouble) {
			return datalog.Ref(datalog.Entid(n)), true, nil
		}
		if allowed.Contains(datalog.TypeDouble) {
			return datalog.Double(float64(n)), true, nil
		}
	}
	return tv, false, nil
}

func asKeyword(raw interface{}) (datalog.Keyword, bool) {
	switch k := raw.(type) {
	case datalog.Keyword:
		return k, true
	case *datalog.Keyword:
		if k != nil {
			return *k, true
		}
	case datalog.TypedValue:
		if kw, ok := k.V.(datalog.Keyword); ok {
			return kw, true
		}
	}
	return datalog.Keyword{}, false
}
