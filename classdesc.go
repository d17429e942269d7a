package jdeserialize

import "strings"

// FieldType is the single-character JVM type code of a serialized field.
type FieldType byte

const (
	FieldByte    FieldType = 'B'
	FieldChar    FieldType = 'C'
	FieldDouble  FieldType = 'D'
	FieldFloat   FieldType = 'F'
	FieldInt     FieldType = 'I'
	FieldLong    FieldType = 'J'
	FieldShort   FieldType = 'S'
	FieldBoolean FieldType = 'Z'
	FieldObject  FieldType = 'L'
	FieldArray   FieldType = '['
)

func fieldTypeOf(b byte) (FieldType, error) {
	switch ft := FieldType(b); ft {
	case FieldByte, FieldChar, FieldDouble, FieldFloat, FieldInt,
		FieldLong, FieldShort, FieldBoolean, FieldObject, FieldArray:
		return ft, nil
	default:
		return 0, validityErrorf("invalid field type char: %s", hex(int64(b)))
	}
}

// JavaType returns the Java source-level name of the type code. Object and
// array fields resolve through their class descriptor instead; see
// resolveJavaType.
func (t FieldType) JavaType() string {
	switch t {
	case FieldByte:
		return "byte"
	case FieldChar:
		return "char"
	case FieldDouble:
		return "double"
	case FieldFloat:
		return "float"
	case FieldInt:
		return "int"
	case FieldLong:
		return "long"
	case FieldShort:
		return "short"
	case FieldBoolean:
		return "boolean"
	case FieldObject:
		return "Object"
	case FieldArray:
		return "Object[]"
	default:
		return "(unknown)"
	}
}

// Field is one field within a class description. Fields have no handles;
// they exist only as part of their class description.
type Field struct {
	Type FieldType
	Name string
	// ClassName holds the JVM type descriptor (e.g. "Lfoo/Bar;" or "[I")
	// for object and array fields; nil for primitives.
	ClassName *StringObject

	isInnerClassReference bool
}

func newField(ft FieldType, name string, className *StringObject) (*Field, error) {
	f := &Field{Type: ft, Name: name, ClassName: className}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsInnerClassReference reports whether this is a synthetic this$N field
// pointing at an enclosing class. Set by the reconnection pass; such fields
// are hidden from class declarations.
func (f *Field) IsInnerClassReference() bool { return f.isInnerClassReference }

// JavaType resolves the field's type to its Java source-level name
// ("Lfoo/bar;" becomes "foo.bar", "[I" becomes "int[]").
func (f *Field) JavaType() (string, error) {
	classname := ""
	if f.ClassName != nil {
		classname = f.ClassName.Value
	}
	return resolveJavaType(f.Type, classname, true, false)
}

// setReferenceTypeName rewrites the descriptor of an object field to point
// at the given class name. The reconnection pass uses it to fix up fields
// after renaming a member class.
func (f *Field) setReferenceTypeName(name string) error {
	if f.Type != FieldObject {
		return validityErrorf("can't fix up a non-reference field")
	}
	f.ClassName.Value = "L" + strings.ReplaceAll(name, ".", "/") + ";"
	return nil
}

func (f *Field) validate() error {
	if f.Type != FieldObject {
		return nil
	}
	if f.ClassName == nil {
		return validityErrorf("object field %s has no type descriptor", f.Name)
	}
	name := f.ClassName.Value
	if len(name) == 0 || name[0] != 'L' {
		return validityErrorf("invalid object field type descriptor: %s", name)
	}
	if end := strings.IndexByte(name, ';'); end == -1 || end != len(name)-1 {
		return validityErrorf("invalid object field type descriptor (must end with semicolon): %s", name)
	}
	return nil
}

// DescType distinguishes ordinary class descriptions from dynamic proxy
// class descriptions.
type DescType int

const (
	NormalClass DescType = iota
	ProxyClass
)

// ClassDesc is the stream representation of a class: its name, serial
// version UID, descriptor flags, declared fields, class annotations, and
// super-class linkage. Proxy descriptors carry interface names instead of
// a name, UID and fields.
type ClassDesc struct {
	contentBase
	DescType         DescType
	Name             string
	SerialVersionUID int64
	Flags            byte
	Fields           []*Field
	Annotations      []Content
	SuperClass       *ClassDesc
	Interfaces       []string
	EnumConstants    []string
	InnerClasses     []*ClassDesc

	isInnerClass        bool
	isStaticMemberClass bool
	isLocalInnerClass   bool
}

// IsInnerClass reports whether the reconnection pass identified this as a
// non-static inner class of another serialized class.
func (cd *ClassDesc) IsInnerClass() bool { return cd.isInnerClass }

// IsStaticMemberClass reports whether the reconnection pass identified this
// as a static member class of another serialized class.
func (cd *ClassDesc) IsStaticMemberClass() bool { return cd.isStaticMemberClass }

// IsLocalInnerClass reports whether this is a local inner class.
func (cd *ClassDesc) IsLocalInnerClass() bool { return cd.isLocalInnerClass }

// IsArrayClass reports whether this describes an array type.
func (cd *ClassDesc) IsArrayClass() bool {
	return len(cd.Name) > 0 && cd.Name[0] == '['
}

func (cd *ClassDesc) addEnum(constant string) {
	cd.EnumConstants = append(cd.EnumConstants, constant)
}

func (cd *ClassDesc) addInnerClass(inner *ClassDesc) {
	cd.InnerClasses = append(cd.InnerClasses, inner)
}

// hierarchy returns the class chain eldest ancestor first, ending with cd
// itself. Per-instance field data is read in this order.
func (cd *ClassDesc) hierarchy() []*ClassDesc {
	var chain []*ClassDesc
	for c := cd; c != nil; c = c.SuperClass {
		chain = append(chain, c)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (cd *ClassDesc) String() string {
	return "[cd " + hex(int64(cd.handle)) + ": name " + cd.Name +
		" uid " + hex(cd.SerialVersionUID) + "]"
}

func (cd *ClassDesc) validate() error {
	if cd.Flags&ScSerializable != 0 && cd.Flags&ScExternalizable != 0 {
		return validityErrorf("class %s has both SC_SERIALIZABLE and SC_EXTERNALIZABLE set", cd.Name)
	}
	if cd.IsArrayClass() && len(cd.Name) < 2 {
		return validityErrorf("invalid array class name: %s", cd.Name)
	}
	for _, f := range cd.Fields {
		if err := f.validate(); err != nil {
			return err
		}
	}
	return nil
}
