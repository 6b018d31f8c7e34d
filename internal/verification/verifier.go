package verification

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"iot_query_agent/internal/logger"
)

// Verification outcomes.
const (
	StatusVerified  = "verified"
	StatusCorrected = "corrected"
	StatusError     = "verification_error"
)

// Hallucination is a mention of an entity category the installation does not
// have.
type Hallucination struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
}

// Result carries verification metadata for one generated response.
type Result struct {
	Status           string          `json:"status"`
	NeedsCorrection  bool            `json:"needs_correction"`
	Hallucinations   []Hallucination `json:"hallucinations,omitempty"`
	OriginalResponse string          `json:"original_response,omitempty"`
	ValidSensorTypes []string        `json:"valid_sensor_types,omitempty"`
	CheckedAt        time.Time       `json:"checked_at"`
}

// forbiddenCategory names a sensor family the hardware does not carry,
// together with the keywords that betray a generated mention of it.
type forbiddenCategory struct {
	name     string
	keywords []string
}

// The installation only carries temperature (NTC thermistor) and light (LDR)
// sensors; everything below is a family the generator could plausibly invent.
var forbiddenCategories = []forbiddenCategory{
	{"humidity", []string{"humidity", "humedad", "rh"}},
	{"pressure", []string{"pressure", "presion", "hpa", "barometric"}},
	{"motion", []string{"motion", "movimiento", "pir"}},
	{"sound", []string{"sound", "noise", "decibel", "db"}},
	{"air_quality", []string{"co2", "carbon dioxide", "air quality"}},
	{"ph", []string{"ph level", "acidity", "alkalinity"}},
	{"flow", []string{"flow rate", "caudal"}},
	{"voltage", []string{"voltage", "voltaje"}},
}

var forbiddenPatterns = compileForbidden()

func compileForbidden() map[string][]*regexp.Regexp {
	patterns := make(map[string][]*regexp.Regexp, len(forbiddenCategories))
	for _, cat := range forbiddenCategories {
		for _, kw := range cat.keywords {
			patterns[cat.name] = append(patterns[cat.name],
				regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
		}
	}
	return patterns
}

// Verifier scans generated responses against the live entity whitelist and
// substitutes a correction when a response references sensors that do not
// exist.
type Verifier struct {
	cache *EntityCache
}

// NewVerifier creates a verifier over the given cache.
func NewVerifier(cache *EntityCache) *Verifier {
	return &Verifier{cache: cache}
}

// Verify checks a generated response for hallucinated entities. It returns
// the (possibly corrected) response text and the verification metadata.
//
// Verification is idempotent on already-correct text: a verified response is
// returned untouched, and a correction never contains forbidden keywords, so
// verifying a correction is a no-op.
//
// A cache refresh failure does not drop the response: the unverified text is
// returned together with a StatusError result and the error.
func (v *Verifier) Verify(ctx context.Context, response string) (string, *Result, error) {
	result := &Result{CheckedAt: time.Now()}

	validSensors, _, err := v.cache.Snapshot(ctx)
	if err != nil {
		result.Status = StatusError
		return response, result, err
	}
	sort.Strings(validSensors)
	result.ValidSensorTypes = validSensors

	result.Hallucinations = scan(response, validSensors)
	if len(result.Hallucinations) == 0 {
		result.Status = StatusVerified
		return response, result, nil
	}

	logger.Warn().
		Int("hallucinations", len(result.Hallucinations)).
		Msg("⚠️ generated response references sensors that do not exist")

	result.Status = StatusCorrected
	result.NeedsCorrection = true
	result.OriginalResponse = response
	return correctionResponse(validSensors), result, nil
}

// scan finds whole-word, case-insensitive mentions of forbidden categories.
// A category whose name happens to be in the live whitelist is skipped, so
// the table stays safe if the hardware ever grows such a sensor.
func scan(response string, validSensors []string) []Hallucination {
	valid := make(map[string]struct{}, len(validSensors))
	for _, s := range validSensors {
		valid[normalizeEntity(s)] = struct{}{}
	}

	var found []Hallucination
	for _, cat := range forbiddenCategories {
		if _, ok := valid[cat.name]; ok {
			continue
		}
		for i, kw := range cat.keywords {
			if forbiddenPatterns[cat.name][i].MatchString(response) {
				found = append(found, Hallucination{Category: cat.name, Keyword: kw})
			}
		}
	}
	return found
}

// SensorBuckets groups valid sensor types into coarse semantic buckets by
// name-fragment matching, for readable correction messages.
type SensorBuckets struct {
	Temperature []string
	Light       []string
	Other       []string
}

// ClassifySensors buckets the whitelist by name fragments.
func ClassifySensors(validSensors []string) SensorBuckets {
	var buckets SensorBuckets
	for _, sensor := range validSensors {
		name := strings.ToLower(sensor)
		switch {
		case containsAny(name, "temp", "ntc", "t1", "t2", "t3"):
			buckets.Temperature = append(buckets.Temperature, sensor)
		case containsAny(name, "ldr", "light", "lux"):
			buckets.Light = append(buckets.Light, sensor)
		default:
			buckets.Other = append(buckets.Other, sensor)
		}
	}
	return buckets
}

// correctionResponse builds the templated replacement for a flagged response.
// It deliberately never repeats the offending keywords, otherwise a second
// verification pass would flag the correction itself.
func correctionResponse(validSensors []string) string {
	buckets := ClassifySensors(validSensors)

	var b strings.Builder
	b.WriteString("Data verification notice: my previous answer mentioned sensor types that are not installed in this system, so I have discarded it.\n\n")
	b.WriteString("The sensors actually available are:\n")
	if len(buckets.Temperature) > 0 {
		b.WriteString("- Temperature: " + strings.Join(buckets.Temperature, ", ") + "\n")
	}
	if len(buckets.Light) > 0 {
		b.WriteString("- Light: " + strings.Join(buckets.Light, ", ") + "\n")
	}
	if len(buckets.Other) > 0 {
		b.WriteString("- Other: " + strings.Join(buckets.Other, ", ") + "\n")
	}
	if len(validSensors) == 0 {
		b.WriteString("- (no sensors are currently reporting)\n")
	}
	b.WriteString("\nNo other sensor families exist in this installation, so I cannot report on the requested measurement. ")
	b.WriteString("Would you like a reading from one of the sensors listed above instead?")
	return b.String()
}

func containsAny(s string, fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
