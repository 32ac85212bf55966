package utils

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/picogrid/killweb-simulations/pkg/simulation"
)

// EnvPrefix prefixes parameter environment variables
const EnvPrefix = "KILLWEB_"

// SkipPromptsEnv disables interactive prompts when set to "true"
const SkipPromptsEnv = EnvPrefix + "SKIP_PROMPTS"

// PromptForParameters asks for every parameter. With prompts skipped,
// KILLWEB_<NAME> variables and then descriptor defaults are used.
func PromptForParameters(params []simulation.Parameter) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))
	skip := os.Getenv(SkipPromptsEnv) == "true"

	for _, param := range params {
		var (
			value interface{}
			err   error
		)
		if skip {
			value, err = DefaultValue(param)
		} else {
			value, err = promptForParameter(param)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		if value != nil {
			result[param.Name] = value
		}
	}
	return result, nil
}

// DefaultValue resolves a parameter without prompting: its environment
// variable first, then the descriptor default
func DefaultValue(param simulation.Parameter) (interface{}, error) {
	if envValue := os.Getenv(envKey(param)); envValue != "" {
		return ParseValue(envValue, param)
	}
	if param.Default != nil {
		return param.Default, nil
	}
	if param.Required {
		return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
	}
	return nil, nil
}

func envKey(param simulation.Parameter) string {
	return EnvPrefix + strings.ToUpper(param.Name)
}

func promptForParameter(param simulation.Parameter) (interface{}, error) {
	// an environment value becomes the prompt default
	if envValue := os.Getenv(envKey(param)); envValue != "" {
		if parsed, err := ParseValue(envValue, param); err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "integer":
		return promptInteger(param)
	case "float":
		return promptFloat(param)
	case "string":
		return promptString(param)
	case "boolean":
		return promptBoolean(param)
	case "duration":
		return promptDuration(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// ParseValue parses a string according to the parameter type and checks it
// against the parameter's range and options
func ParseValue(value string, param simulation.Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		i, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %w", err)
		}
		return i, checkRange(float64(i), param)
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %w", err)
		}
		return f, checkRange(f, param)
	case "string":
		if len(param.Options) > 0 && !slices.Contains(param.Options, value) {
			return nil, fmt.Errorf("value must be one of: %s", strings.Join(param.Options, ", "))
		}
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration format (use formats like 5m, 1h30m, 30s)")
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func checkRange(v float64, param simulation.Parameter) error {
	if param.Min != nil {
		if lo := toFloat64(param.Min); v < lo {
			return fmt.Errorf("value must be at least %g", lo)
		}
	}
	if param.Max != nil {
		if hi := toFloat64(param.Max); v > hi {
			return fmt.Errorf("value must be at most %g", hi)
		}
	}
	return nil
}

// validator checks typed input before survey accepts it
func validator(param simulation.Parameter) survey.Validator {
	return func(val interface{}) error {
		str, _ := val.(string)
		if str == "" {
			if param.Required {
				return fmt.Errorf("value is required")
			}
			return nil
		}
		_, err := ParseValue(str, param)
		return err
	}
}

func defaultString(param simulation.Parameter) string {
	switch v := param.Default.(type) {
	case nil:
		return ""
	case float64:
		if param.Type == "integer" {
			return strconv.Itoa(int(v))
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func askInput(param simulation.Parameter, hint string) (string, error) {
	prompt := &survey.Input{
		Message: param.Description + hint,
		Default: defaultString(param),
	}
	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(validator(param))); err != nil {
		return "", err
	}
	return result, nil
}

func promptInteger(param simulation.Parameter) (interface{}, error) {
	s, err := askInput(param, "")
	if err != nil || s == "" {
		return nil, err
	}
	return ParseValue(s, param)
}

func promptFloat(param simulation.Parameter) (interface{}, error) {
	s, err := askInput(param, "")
	if err != nil || s == "" {
		return nil, err
	}
	return ParseValue(s, param)
}

func promptDuration(param simulation.Parameter) (interface{}, error) {
	s, err := askInput(param, " (e.g., 5m, 1h30m, 30s)")
	if err != nil || s == "" {
		return nil, err
	}
	return ParseValue(s, param)
}

func promptString(param simulation.Parameter) (interface{}, error) {
	if len(param.Options) > 0 {
		prompt := &survey.Select{
			Message: param.Description,
			Options: param.Options,
			Default: defaultString(param),
		}
		var result string
		if err := survey.AskOne(prompt, &result); err != nil {
			return nil, err
		}
		return result, nil
	}
	return askInput(param, "")
}

func promptBoolean(param simulation.Parameter) (interface{}, error) {
	defaultBool := false
	switch v := param.Default.(type) {
	case bool:
		defaultBool = v
	case string:
		defaultBool, _ = strconv.ParseBool(v)
	}

	prompt := &survey.Confirm{
		Message: param.Description,
		Default: defaultBool,
	}
	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
