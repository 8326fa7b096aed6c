package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	k8sResource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/queuecapacity/internal/capacity/resources"
	"github.com/armadaproject/queuecapacity/internal/common/capacityerrors"
	"github.com/armadaproject/queuecapacity/internal/common/resource"
)

// Parser turns capacity declarations into capacity vectors over the dimensions of a resources.Factory.
//
// Accepted forms:
//
//	"50" or "50%"                      50 percent of every dimension
//	"3w"                               weight 3 in every dimension
//	"[memory=50%, vcores=3w, gpu=2]"   per dimension; a bare value is an absolute amount and may be a quantity such as 10Gi
//
// The empty string declares nothing.
type Parser struct {
	factory *resources.Factory
	// Maps declaration strings to parsed vectors. Nil if caching is disabled.
	cache *lru.Cache
}

func NewParser(factory *resources.Factory, cacheSize int) (*Parser, error) {
	p := &Parser{factory: factory}
	if cacheSize > 0 {
		cache, err := lru.New(cacheSize)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		p.cache = cache
	}
	return p, nil
}

// Factory returns the resource types p parses declarations for.
func (p *Parser) Factory() *resources.Factory {
	return p.factory
}

// CachedLen returns the number of parsed declarations held in the cache.
func (p *Parser) CachedLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

// Parse returns the vector declared by s. Every invalid dimension is reported in the returned error.
func (p *Parser) Parse(s string) (CapacityVector, error) {
	s = strings.TrimSpace(s)
	if p.cache != nil {
		if v, ok := p.cache.Get(s); ok {
			return v.(CapacityVector), nil
		}
	}
	v, err := p.parse(s)
	if err != nil {
		return CapacityVector{}, err
	}
	if p.cache != nil {
		p.cache.Add(s, v)
	}
	return v, nil
}

// MustParse is Parse for declarations known to be valid, e.g. in tests.
func (p *Parser) MustParse(s string) CapacityVector {
	v, err := p.Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (p *Parser) parse(s string) (CapacityVector, error) {
	if s == "" {
		return CapacityVector{}, nil
	}
	if strings.HasPrefix(s, "[") {
		return p.parseBracketed(s)
	}
	entry, err := parseUniformEntry(s)
	if err != nil {
		return CapacityVector{}, err
	}
	return Uniform(p.factory.Names(), entry), nil
}

func (p *Parser) parseBracketed(s string) (CapacityVector, error) {
	if !strings.HasSuffix(s, "]") {
		return CapacityVector{}, invalidDeclaration(s, "missing closing bracket")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return CapacityVector{}, nil
	}
	var result *multierror.Error
	v := CapacityVector{}
	for _, part := range strings.Split(body, ",") {
		name, value, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !found || name == "" {
			result = multierror.Append(result, invalidDeclaration(part, "expected <resource>=<value>"))
			continue
		}
		if _, ok := p.factory.Index(name); !ok {
			result = multierror.Append(result, errors.WithStack(&capacityerrors.ErrInvalidArgument{
				Name:    "resourceName",
				Value:   name,
				Message: "resource type is not configured",
			}))
			continue
		}
		if _, exists := v.Get(name); exists {
			result = multierror.Append(result, invalidDeclaration(part, fmt.Sprintf("resource %s is declared more than once", name)))
			continue
		}
		entry, err := parseEntry(value)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		v = v.With(name, entry)
	}
	if err := result.ErrorOrNil(); err != nil {
		return CapacityVector{}, errors.WithMessagef(err, "invalid capacity %q", s)
	}
	return v, nil
}

// parseUniformEntry parses a declaration applied to every dimension, where a bare number is a percentage.
func parseUniformEntry(s string) (Entry, error) {
	if strings.HasSuffix(s, "w") {
		return parseEntry(s)
	}
	return parseEntry(strings.TrimSuffix(s, "%") + "%")
}

// parseEntry parses a single dimension, where a bare value is an absolute amount.
func parseEntry(s string) (Entry, error) {
	switch {
	case strings.HasSuffix(s, "%"):
		value, err := parseNumber(strings.TrimSuffix(s, "%"))
		if err != nil {
			return Entry{}, err
		}
		if value > 100 {
			return Entry{}, invalidDeclaration(s, "percentage must not exceed 100")
		}
		return Percent(value), nil
	case strings.HasSuffix(s, "w"):
		value, err := parseNumber(strings.TrimSuffix(s, "w"))
		if err != nil {
			return Entry{}, err
		}
		return Weighted(value), nil
	default:
		if value, err := parseNumber(s); err == nil {
			return Abs(value), nil
		}
		q, err := k8sResource.ParseQuantity(s)
		if err != nil {
			return Entry{}, invalidDeclaration(s, "expected a number, a percentage, a weight or a quantity")
		}
		if q.Sign() < 0 {
			return Entry{}, invalidDeclaration(s, "value must not be negative")
		}
		return Abs(resource.QuantityAsFloat64(q)), nil
	}
}

func parseNumber(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalidDeclaration(s, "not a number")
	}
	if value < 0 {
		return 0, invalidDeclaration(s, "value must not be negative")
	}
	return value, nil
}

func invalidDeclaration(s string, msg string) error {
	return errors.WithStack(&capacityerrors.ErrInvalidArgument{
		Name:    "capacity",
		Value:   s,
		Message: msg,
	})
}
