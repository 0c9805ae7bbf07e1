package monitor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/opsvigil/vigil/internal/notify"
	"github.com/opsvigil/vigil/schemas"
)

const schemaURL = "monitor_v1.json"

// Validator handles monitoring configuration validation
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a validator backed by the embedded configuration schema
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemas.MonitorV1))
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded schema: %w", err)
	}
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to register schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory loads and validates all configuration files in a directory
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	docs, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	if len(docs) == 0 {
		return allErrors
	}

	return append(allErrors, v.ValidateDocuments(docs)...)
}

// ValidateDocuments validates already-loaded documents against the JSON
// schema and the cross-field rules the schema cannot express
func (v *Validator) ValidateDocuments(docs []DocumentWithFile) []ValidationError {
	var allErrors []ValidationError

	for _, dw := range docs {
		schemaErrors := v.validateSchema(dw.File, dw.Document)
		allErrors = append(allErrors, schemaErrors...)
	}

	return append(allErrors, validateExtraRules(docs)...)
}

// LoadConfig loads, validates and merges every configuration document in a
// directory. The returned Config is only usable when no errors are reported.
func LoadConfig(dirPath string) (Config, []ValidationError) {
	validator, err := NewValidator()
	if err != nil {
		return Config{}, []ValidationError{{File: dirPath, Message: err.Error()}}
	}

	docs, errors := LoadFromDirectory(dirPath)
	errors = append(errors, validator.ValidateDocuments(docs)...)
	if len(docs) == 0 {
		errors = append(errors, ValidationError{
			File:    dirPath,
			Message: "no configuration documents found",
		})
	}
	if len(errors) > 0 {
		return Config{}, errors
	}

	return Merge(docs), nil
}

// validateSchema validates a single document against the JSON schema
func (v *Validator) validateSchema(file string, doc *Document) []ValidationError {
	var errors []ValidationError

	// Round-trip through YAML to get the plain value tree the schema
	// validator understands.
	yamlBytes, err := yaml.Marshal(doc)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal document: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// validateExtraRules applies validation rules beyond the JSON schema:
// cross-field consistency and duplicates across files
func validateExtraRules(docs []DocumentWithFile) []ValidationError {
	var errors []ValidationError

	checkSeen := make(map[string]string)
	channelSeen := make(map[string]string)
	serviceSeen := make(map[string]string)

	for _, dw := range docs {
		spec := dw.Document.Spec

		errors = append(errors, validateEngineSettings(dw.File, spec.Engine)...)

		for i, check := range spec.Checks {
			if prevFile, exists := checkSeen[check.Name]; exists {
				errors = append(errors, ValidationError{
					File:    dw.File,
					Path:    fmt.Sprintf("spec.checks[%d].name", i),
					Message: fmt.Sprintf("duplicate check %q (also in %s)", check.Name, filepath.Base(prevFile)),
				})
			} else {
				checkSeen[check.Name] = dw.File
			}
			errors = append(errors, validateCheck(dw.File, i, check)...)
		}

		for i, channel := range spec.Notifications.Channels {
			if prevFile, exists := channelSeen[channel.Name]; exists {
				errors = append(errors, ValidationError{
					File:    dw.File,
					Path:    fmt.Sprintf("spec.notifications.channels[%d].name", i),
					Message: fmt.Sprintf("duplicate channel %q (also in %s)", channel.Name, filepath.Base(prevFile)),
				})
			} else {
				channelSeen[channel.Name] = dw.File
			}
			errors = append(errors, validateChannel(dw.File, i, channel)...)
		}

		errors = append(errors, validateSLASettings(dw.File, spec.SLA, serviceSeen)...)
	}

	return errors
}

func validateEngineSettings(file string, engine EngineSettings) []ValidationError {
	var errors []ValidationError

	if engine.Schedule != "" {
		if _, err := cron.ParseStandard(engine.Schedule); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.engine.schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if engine.DefaultCheckTimeout != "" {
		if _, err := ParseDuration(engine.DefaultCheckTimeout); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.engine.defaultCheckTimeout",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	return errors
}

func validateCheck(file string, index int, check CheckDefinition) []ValidationError {
	var errors []ValidationError
	base := fmt.Sprintf("spec.checks[%d]", index)

	if check.Timeout != "" {
		if _, err := ParseDuration(check.Timeout); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".timeout",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	switch check.Type {
	case CheckTypeHTTP:
		if check.HTTP == nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".http",
				Message: "http block required for http checks",
			})
		}
	case CheckTypeDatabase:
		if check.Database == nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".database",
				Message: "database block required for database checks",
			})
			break
		}
		errors = append(errors, validateDatabaseCheck(file, base+".database", check.Database)...)
	}

	return errors
}

func validateDatabaseCheck(file, base string, db *DatabaseCheck) []ValidationError {
	var errors []ValidationError

	hasExpected := db.ExpectedValue != nil
	hasOperator := db.Operator != ""
	if hasExpected != hasOperator {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    base,
			Message: "expectedValue and operator must be set together",
		})
	}
	if hasExpected && (db.WarningThreshold != nil || db.CriticalThreshold != nil) {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    base,
			Message: "expectedValue comparison and thresholds are mutually exclusive",
		})
	}
	if db.WarningThreshold != nil && db.CriticalThreshold != nil &&
		*db.WarningThreshold >= *db.CriticalThreshold {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    base + ".warningThreshold",
			Message: fmt.Sprintf("warningThreshold (%g) must be below criticalThreshold (%g)", *db.WarningThreshold, *db.CriticalThreshold),
		})
	}
	if (hasExpected || db.WarningThreshold != nil || db.CriticalThreshold != nil) && db.Query == "" {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    base + ".query",
			Message: "scalar comparisons require a query",
		})
	}

	return errors
}

func validateChannel(file string, index int, channel notify.Channel) []ValidationError {
	var errors []ValidationError
	base := fmt.Sprintf("spec.notifications.channels[%d]", index)

	switch channel.Type {
	case notify.ChannelEmail:
		if channel.Email == nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".email",
				Message: "email block required for email channels",
			})
		}
	case notify.ChannelSlack, notify.ChannelTeams, notify.ChannelWebhook:
		if channel.Target == "" {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".target",
				Message: "webhook URL required",
			})
		}
	}

	return errors
}

func validateSLASettings(file string, sla SLASettings, serviceSeen map[string]string) []ValidationError {
	var errors []ValidationError

	if sla.EvaluationInterval != "" {
		if _, err := ParseDuration(sla.EvaluationInterval); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    "spec.sla.evaluationInterval",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	for i, def := range sla.Definitions {
		base := fmt.Sprintf("spec.sla.definitions[%d]", i)

		if prevFile, exists := serviceSeen[def.Service]; exists {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".service",
				Message: fmt.Sprintf("duplicate SLA for service %q (also in %s)", def.Service, filepath.Base(prevFile)),
			})
		} else {
			serviceSeen[def.Service] = file
		}

		if _, err := ParseDuration(def.MeasurementPeriod); err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".measurementPeriod",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}

		for name, target := range map[string]*float64{
			"availabilityTarget": def.AvailabilityTarget,
			"successRateTarget":  def.SuccessRateTarget,
		} {
			if target != nil && (*target <= 0 || *target > 100) {
				errors = append(errors, ValidationError{
					File:    file,
					Path:    base + "." + name,
					Message: fmt.Sprintf("target must be in (0, 100], got %g", *target),
				})
			}
		}
		if def.ResponseTimeP95Ms != nil && *def.ResponseTimeP95Ms <= 0 {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base + ".responseTimeP95Ms",
				Message: fmt.Sprintf("target must be positive, got %g", *def.ResponseTimeP95Ms),
			})
		}
		if def.AvailabilityTarget == nil && def.SuccessRateTarget == nil && def.ResponseTimeP95Ms == nil {
			errors = append(errors, ValidationError{
				File:    file,
				Path:    base,
				Message: "at least one target required",
			})
		}
	}

	return errors
}
