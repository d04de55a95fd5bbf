package schema

// Result descriptors describe the value an activity hands back. They share
// the Parameter machinery; the aliases exist so event declarations read as
// intent ("this returns a URI") rather than mechanism.

// StringResult declares a string result.
func StringResult(description string, opts ...Option) *Parameter {
	return String(description, opts...)
}

// BooleanResult declares a boolean result.
func BooleanResult(description string, opts ...Option) *Parameter {
	return Boolean(description, opts...)
}

// IntResult declares an integer result.
func IntResult(description string, opts ...Option) *Parameter {
	return Int(description, opts...)
}

// FloatResult declares a floating point result.
func FloatResult(description string, opts ...Option) *Parameter {
	return Float(description, opts...)
}

// UriResult declares a URI result.
func UriResult(description string, opts ...Option) *Parameter {
	return Uri(description, opts...)
}

// ObjectResult declares an object result with named properties.
func ObjectResult(description string, properties map[string]*Parameter, opts ...Option) *Parameter {
	return Object(description, properties, opts...)
}

// ArrayResult declares an array result.
func ArrayResult(description string, element *Parameter, opts ...Option) *Parameter {
	return Array(description, element, opts...)
}

// JsonResult declares a result accepting any JSON value.
func JsonResult(description string, opts ...Option) *Parameter {
	return Json(description, opts...)
}
