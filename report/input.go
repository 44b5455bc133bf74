package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"usage-reports/logstore"
	"usage-reports/utils"

	"github.com/go-playground/validator/v10"
)

// MaxRangeDays est l'écart maximum entre from_date et upto_date sans ciblage client/produit.
const MaxRangeDays = 31

const rangeTooLongMessage = "Date range should not be greater than 31 days."

// ValidationError est renvoyée de façon synchrone; aucun job n'est créé.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FlexInt accepte un nombre ou une chaîne numérique; toute valeur invalide,
// négative ou hors de int64 vaut 0.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	*f = ParseFlexInt(strings.Trim(string(data), `"`))
	return nil
}

// ParseFlexInt applique les règles de FlexInt à une valeur texte (corps JSON ou query string).
func ParseFlexInt(s string) FlexInt {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0
		}
		return FlexInt(n)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v >= math.MaxInt64 {
		return 0
	}
	return FlexInt(int64(v))
}

// Input est le corps d'une demande d'export (ou d'une liste interactive).
type Input struct {
	CustomerID  string  `json:"customer_id" validate:"omitempty,max=255"`
	ProductID   FlexInt `json:"product_id"`
	Search      string  `json:"search" validate:"omitempty,max=255"`
	FromDate    string  `json:"from_date" validate:"omitempty,datetime=2006-01-02"`
	UptoDate    string  `json:"upto_date" validate:"omitempty,datetime=2006-01-02"`
	Environment string  `json:"environment" validate:"omitempty,max=64"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var tagMessages = map[string]string{
	"max":      "The field '%s' must be no longer than %s characters.",
	"datetime": "The field '%s' must be a date formatted as YYYY-MM-DD.",
}

// Normalize nettoie les champs texte.
func (in *Input) Normalize() {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.Search = strings.TrimSpace(in.Search)
	in.FromDate = strings.TrimSpace(in.FromDate)
	in.UptoDate = strings.TrimSpace(in.UptoDate)
	in.Environment = strings.ToLower(strings.TrimSpace(in.Environment))
}

// Filter valide l'entrée et la convertit en filtre de lecture des logs.
func (in Input) Filter(defaultEnv string) (logstore.Filter, error) {
	in.Normalize()
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			msg, ok := tagMessages[e.Tag()]
			if !ok {
				msg = "Field '%s' is invalid."
			}
			if strings.Count(msg, "%s") == 2 {
				msg = fmt.Sprintf(msg, e.Field(), e.Param())
			} else {
				msg = fmt.Sprintf(msg, e.Field())
			}
			return logstore.Filter{}, &ValidationError{Field: e.Field(), Message: msg}
		}
		return logstore.Filter{}, err
	}

	f := logstore.Filter{
		CustomerID:  in.CustomerID,
		ProductID:   int64(in.ProductID),
		Search:      in.Search,
		Environment: in.Environment,
	}
	if f.Environment == "" {
		f.Environment = defaultEnv
	}

	if in.FromDate == "" || in.UptoDate == "" {
		if !f.Scoped() {
			return f, &ValidationError{Field: "from_date", Message: "from_date and upto_date are required."}
		}
		if in.FromDate != "" || in.UptoDate != "" {
			return f, &ValidationError{Field: "from_date", Message: "from_date and upto_date must be given together."}
		}
		return f, nil
	}

	from, err := utils.ParseDate(in.FromDate)
	if err != nil {
		return f, &ValidationError{Field: "from_date", Message: "The field 'from_date' must be a date formatted as YYYY-MM-DD."}
	}
	upto, err := utils.ParseDate(in.UptoDate)
	if err != nil {
		return f, &ValidationError{Field: "upto_date", Message: "The field 'upto_date' must be a date formatted as YYYY-MM-DD."}
	}
	if upto.Before(from) {
		return f, &ValidationError{Field: "upto_date", Message: "upto_date must not be before from_date."}
	}
	if !f.Scoped() && upto.Sub(from) > MaxRangeDays*24*time.Hour {
		return f, &ValidationError{Field: "upto_date", Message: rangeTooLongMessage}
	}
	f.From, f.Upto = &from, &upto
	return f, nil
}

// DecodeInput lit un corps JSON; les champs inconnus sont ignorés.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	if len(bytes.TrimSpace(data)) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, &ValidationError{Field: "body", Message: "Invalid JSON body."}
	}
	return in, nil
}
