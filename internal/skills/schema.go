package skills

// Schema emission helpers, shared by every detector's Schema() method. The
// shape mirrors OpenAI-style function-calling descriptors:
// {name, description, parameters:{type:"object", properties, required}}.

// StringParam describes a required-or-optional string property.
func StringParam(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// BoolParam describes a boolean property with a default value.
func BoolParam(description string, def bool) map[string]any {
	return map[string]any{
		"type":        "boolean",
		"description": description,
		"default":     def,
	}
}

// IntParam describes an integer property with a default value.
func IntParam(description string, def int) map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": description,
		"default":     def,
	}
}

// ArrayParam describes an array-of-string property.
func ArrayParam(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": description,
	}
}

// SkillSchema assembles a full tool-calling schema document.
func SkillSchema(name, description string, properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": description,
		"parameters": map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// StandardProperties returns the property set every file/directory
// detector's schema shares: path, recursive, deep_scan.
func StandardProperties(pathDescription string) map[string]any {
	return map[string]any{
		"path":      StringParam(pathDescription),
		"recursive": BoolParam("Recurse into subdirectories", false),
		"deep_scan": BoolParam("Enable heavier, slower analyses", false),
	}
}
