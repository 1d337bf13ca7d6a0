package matching

import (
	"github.com/samirrijal/menuwatch/internal/pkg/jsontree"
)

// FindScalar returns the first scalar whose enclosing key is in keys.
//
// Inside a mapping, direct scalar fields are checked (in document order)
// before descending into nested containers, so a record's own "id" wins
// over an "id" buried in one of its sub-objects. Sequences are walked in
// order. Null values never match. Absence is reported with ok=false.
func FindScalar(tree *jsontree.Node, keys KeySet) (*jsontree.Node, bool) {
	if tree == nil {
		return nil, false
	}
	switch tree.Kind {
	case jsontree.Mapping:
		for _, f := range tree.Fields {
			if f.Value.IsScalar() && keys.Contains(f.Key) {
				return f.Value, true
			}
		}
		for _, f := range tree.Fields {
			if !f.Value.IsContainer() {
				continue
			}
			if v, ok := FindScalar(f.Value, keys); ok {
				return v, true
			}
		}
	case jsontree.Sequence:
		for _, it := range tree.Items {
			if v, ok := FindScalar(it, keys); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Scanner locates candidate records inside a gateway response of unknown shape.
type Scanner struct {
	latKeys  KeySet
	lonKeys  KeySet
	wrappers KeySet
	order    []string
}

// NewScanner creates a Scanner from cfg.
func NewScanner(cfg Config) *Scanner {
	return &Scanner{
		latKeys:  cfg.LatKeys,
		lonKeys:  cfg.LonKeys,
		wrappers: NewKeySet(cfg.Wrappers...),
		order:    cfg.Wrappers,
	}
}

// FindRecordArray returns the elements of the first array (pre-order,
// document order) whose first element is a mapping exposing both a latitude
// and a longitude. Failing that, it looks under the response's data object
// for arrays wrapped as items/nodes/edges (in the configured priority), then
// for any array placed directly under data. It returns nil when nothing fits.
func (s *Scanner) FindRecordArray(root *jsontree.Node) []*jsontree.Node {
	if arr := s.findCoordinateArray(root); arr != nil {
		return arr.Items
	}
	return s.findWrappedArray(root)
}

func (s *Scanner) findCoordinateArray(n *jsontree.Node) *jsontree.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case jsontree.Sequence:
		if len(n.Items) > 0 && s.hasCoordinates(n.Items[0]) {
			return n
		}
		for _, it := range n.Items {
			if arr := s.findCoordinateArray(it); arr != nil {
				return arr
			}
		}
	case jsontree.Mapping:
		for _, f := range n.Fields {
			if arr := s.findCoordinateArray(f.Value); arr != nil {
				return arr
			}
		}
	}
	return nil
}

func (s *Scanner) hasCoordinates(n *jsontree.Node) bool {
	if n == nil || n.Kind != jsontree.Mapping {
		return false
	}
	if _, ok := FindScalar(n, s.latKeys); !ok {
		return false
	}
	_, ok := FindScalar(n, s.lonKeys)
	return ok
}

func (s *Scanner) findWrappedArray(root *jsontree.Node) []*jsontree.Node {
	data := root.Get("data")
	if data == nil {
		data = root
	}
	if data == nil || data.Kind != jsontree.Mapping {
		return nil
	}

	for _, name := range s.order {
		wrapper := NewKeySet(name)
		if arr := wrappedIn(data, wrapper); arr != nil {
			return arr
		}
		for _, f := range data.Fields {
			if f.Value.Kind != jsontree.Mapping {
				continue
			}
			if arr := wrappedIn(f.Value, wrapper); arr != nil {
				return arr
			}
		}
	}

	for _, f := range data.Fields {
		if f.Key == "errors" || s.wrappers.Contains(f.Key) {
			continue
		}
		if f.Value.Kind == jsontree.Sequence && len(f.Value.Items) > 0 {
			return f.Value.Items
		}
	}
	return nil
}

func wrappedIn(m *jsontree.Node, wrapper KeySet) []*jsontree.Node {
	for _, f := range m.Fields {
		if wrapper.Contains(f.Key) && f.Value.Kind == jsontree.Sequence && len(f.Value.Items) > 0 {
			return f.Value.Items
		}
	}
	return nil
}
