package directory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("normalized", validateNormalized)
	})
	return validate
}

func validateNormalized(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	return key == NormalizeKey(key)
}

// Validate checks a source snapshot before it is used for planning.
// Identity keys must be present, normalized and unique, e-mail addresses
// well formed and group names unique.
func (s *Snapshot) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return pkgerrors.NewValidationError(first.Namespace(), first.Value(),
				fmt.Sprintf("failed %q check (%d problems total)", first.Tag(), len(verrs)))
		}
		return pkgerrors.WrapValidation("snapshot", err)
	}

	if _, dups := s.PeopleByKey(); len(dups) > 0 {
		return pkgerrors.NewValidationError("people.identity_key", keysOf(dups),
			"duplicate identity keys: "+strings.Join(keysOf(dups), ", "))
	}
	if _, dups := s.GroupsByName(); len(dups) > 0 {
		names := make([]string, len(dups))
		for i, g := range dups {
			names[i] = g.Name
		}
		return pkgerrors.NewValidationError("groups.name", names,
			"duplicate group names: "+strings.Join(names, ", "))
	}
	return nil
}

func keysOf(people []Person) []string {
	keys := make([]string, len(people))
	for i, p := range people {
		keys[i] = p.IdentityKey
	}
	return keys
}
