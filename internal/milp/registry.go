package milp

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"
)

// registry names the binary columns of a model and canonicalizes the
// expressions that reference them.
type registry struct {
	names    map[string]Var
	varNames []string
	closed   bool
}

func newRegistry() registry {
	return registry{names: make(map[string]Var)}
}

// NumVars returns the number of variables.
func (r *registry) NumVars() int { return len(r.varNames) }

// Name returns the name of v.
func (r *registry) Name(v Var) string {
	if int(v) < 0 || int(v) >= len(r.varNames) {
		return ""
	}
	return r.varNames[v]
}

func (r *registry) open() error {
	if r.closed {
		return eris.New("milp: solver closed")
	}
	return nil
}

func (r *registry) add(name string) (Var, error) {
	if err := r.open(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, eris.New("milp: variable name is empty")
	}
	if _, dup := r.names[name]; dup {
		return 0, eris.Errorf("milp: duplicate variable %q", name)
	}
	v := Var(len(r.varNames))
	r.names[name] = v
	r.varNames = append(r.varNames, name)
	return v, nil
}

// merge sums repeated variables, drops zero coefficients and sorts by variable.
func (r *registry) merge(terms []Term) ([]Term, error) {
	sum := make(map[Var]float64, len(terms))
	for _, t := range terms {
		if int(t.Var) < 0 || int(t.Var) >= len(r.varNames) {
			return nil, eris.Errorf("milp: unknown variable %d", t.Var)
		}
		sum[t.Var] += t.Coef
	}
	out := make([]Term, 0, len(sum))
	for v, c := range sum {
		if c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	slices.SortFunc(out, func(a, b Term) int { return cmp.Compare(a.Var, b.Var) })
	return out, nil
}
