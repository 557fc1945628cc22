package untangle

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/exp/constraints"

	"github.com/go-gum/untangle/xmlstream"
)

var ErrNoValue = errors.New("no value")
var ErrNotSupported = errors.New("not supported")

type NotSupportedError struct {
	Type reflect.Type
}

func (n NotSupportedError) Error() string {
	return fmt.Sprintf("type %q is not supported", n.Type)
}

func Unmarshal(r io.Reader, target any) error {
	return dec.Unmarshal(r, target)
}

func UnmarshalNew[T any](r io.Reader) (T, error) {
	return UnmarshalNewWith[T](&dec, r)
}

func UnmarshalNewWith[T any](dec *Decoder, r io.Reader) (T, error) {
	var target T
	err := dec.Unmarshal(r, &target)
	return target, err
}

// A setter decodes one complete element, from its start tag through the
// matching end tag, into the given reflect.Value. The driver must be
// positioned so that the next event is the element's start tag (or, for
// text-like targets, stray character data).
type setter func(*driver, reflect.Value) error

// A textSetter parses already extracted text, e.g. an attribute value or
// the character content of an element, into the given reflect.Value.
type textSetter func(string, reflect.Value) error

// A set of types that are currently in construction
type typeSet map[reflect.Type]struct{}

var tyTextUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()

// The default Decoder instance.
var dec Decoder

// Decoder can be used to customize unmarshalling. This type is typesafe.
type Decoder struct {
	// the struct tag that is used
	structTag string

	// Cache for setters, indexed by reflect.Type
	setterCache sync.Map

	// Cache for text setters, indexed by reflect.Type
	textSetterCache sync.Map

	// Require values for fields. Set to true to fail with ErrNoValue
	// if an element or attribute for a field is missing in the document
	requireValues bool
}

func NewDecoder() *Decoder {
	return &Decoder{
		structTag: "xml",
	}
}

func (d *Decoder) WithTag(structTag string) *Decoder {
	if d.structTag == structTag {
		return d
	}

	return &Decoder{
		structTag:     structTag,
		requireValues: d.requireValues,
	}
}

func (d *Decoder) RequireValues() *Decoder {
	if d.requireValues {
		return d
	}

	return &Decoder{
		structTag:     d.structTag,
		requireValues: true,
	}
}

// Unmarshal decodes the document read from r into target, which must be a
// non nil pointer. A struct or primitive target consumes one element; a
// slice target consumes a run of adjacent elements sharing the name of the
// first one.
func (d *Decoder) Unmarshal(r io.Reader, target any) error {
	targetValue := reflect.ValueOf(target).Elem()

	// build the setter for the targets type
	setter, err := d.setterOf(typeSet{}, targetValue.Type())
	if err != nil {
		return err
	}

	return setter(&driver{dec: d, reader: xmlstream.NewReader(r)}, targetValue)
}

// driver holds the per document decode state: the event stream plus the
// flattened-value flag consumed by the next sequence decode. It is owned by
// exactly one decode call tree at a time.
type driver struct {
	dec    *Decoder
	reader *xmlstream.Reader

	// set while the enclosing struct hands its flattened value field to a
	// sequence decode; cleared by newSeqAccess
	hasValueField bool
}

// readText consumes one text-like unit: either a lone run of character
// data, or a complete element whose content is pure text.
func (d *driver) readText() (string, error) {
	ev, err := d.reader.Next()
	if err != nil {
		return "", err
	}

	switch ev := ev.(type) {
	case xmlstream.CharData:
		return string(ev), nil

	case xmlstream.StartElement:
		return d.textContent(ev)

	default:
		return "", fmt.Errorf("expected element or character data, got %s", eventName(ev))
	}
}

// textContent reads the text of an already opened element up to and
// including its end tag.
func (d *driver) textContent(start xmlstream.StartElement) (string, error) {
	var text strings.Builder

	for {
		ev, err := d.reader.Next()
		if err != nil {
			return "", err
		}

		switch ev := ev.(type) {
		case xmlstream.CharData:
			text.WriteString(string(ev))

		case xmlstream.EndElement:
			return text.String(), nil

		case xmlstream.StartElement:
			return "", fmt.Errorf("unexpected child element <%s> in text-only element <%s>", ev.Name.Local, start.Name.Local)

		case xmlstream.EOF:
			return "", fmt.Errorf("unexpected end of document inside <%s>", start.Name.Local)
		}
	}
}

// skip consumes the element whose start tag is the next event, including
// all of its descendants.
func (d *driver) skip() error {
	depth := 0

	for {
		ev, err := d.reader.Next()
		if err != nil {
			return err
		}

		switch ev.(type) {
		case xmlstream.StartElement:
			depth++

		case xmlstream.EndElement:
			depth--
			if depth == 0 {
				return nil
			}

		case xmlstream.EOF:
			return fmt.Errorf("unexpected end of document")
		}
	}
}

// discard drops the next unit of content: a whole element if the next
// event opens one, otherwise the single event itself.
func (d *driver) discard() error {
	ev, err := d.reader.Peek()
	if err != nil {
		return err
	}

	if _, ok := ev.(xmlstream.StartElement); ok {
		return d.skip()
	}

	_, err = d.reader.Next()
	return err
}

func eventName(ev xmlstream.Event) string {
	switch ev := ev.(type) {
	case xmlstream.StartElement:
		return fmt.Sprintf("<%s>", ev.Name.Local)
	case xmlstream.EndElement:
		return fmt.Sprintf("</%s>", ev.Name.Local)
	case xmlstream.CharData:
		return "character data"
	case xmlstream.EOF:
		return "end of document"
	default:
		return fmt.Sprintf("%T", ev)
	}
}

func (d *Decoder) setterOf(inConstruction typeSet, ty reflect.Type) (setter, error) {
	if cached, ok := d.setterCache.Load(ty); ok {
		return cached.(setter), nil
	}

	if _, ok := inConstruction[ty]; ok {
		// detected a cycle. return a setter that does a cache lookup when executed.
		// we assume that the actual setter will be in the cache once this setter is executed.
		lazySetter := func(dr *driver, target reflect.Value) error {
			cached, _ := d.setterCache.Load(ty)
			return cached.(setter)(dr, target)
		}

		return lazySetter, nil
	}

	inConstruction[ty] = struct{}{}

	setter, err := d.makeSetterOf(inConstruction, ty)
	if err != nil {
		return nil, err
	}

	d.setterCache.Store(ty, setter)

	return setter, nil
}

func (d *Decoder) makeSetterOf(inConstruction typeSet, ty reflect.Type) (setter, error) {
	if reflect.PointerTo(ty).Implements(tyTextUnmarshaler) {
		return fromText(setTextUnmarshaler), nil
	}

	switch ty.Kind() {
	case reflect.Pointer:
		return d.makeSetPointer(inConstruction, ty)

	case reflect.Struct:
		return d.makeSetStruct(inConstruction, ty)

	case reflect.Slice:
		if ty.Elem().Kind() != reflect.Uint8 {
			return d.makeSetSlice(inConstruction, ty)
		}

	case reflect.Array:
		return d.makeSetArray(inConstruction, ty)

	case reflect.Map:
		return d.makeSetMap(inConstruction, ty)
	}

	// everything else decodes from the text content of a single element
	textSetter, err := d.textSetterOf(ty)
	if err != nil {
		return nil, err
	}

	return fromText(textSetter), nil
}

// fromText lifts a textSetter to a stream setter consuming one element.
func fromText(set textSetter) setter {
	return func(dr *driver, target reflect.Value) error {
		text, err := dr.readText()
		if err != nil {
			return err
		}

		return set(text, target)
	}
}

func (d *Decoder) textSetterOf(ty reflect.Type) (textSetter, error) {
	if cached, ok := d.textSetterCache.Load(ty); ok {
		return cached.(textSetter), nil
	}

	setter, err := d.makeTextSetterOf(ty)
	if err != nil {
		return nil, err
	}

	d.textSetterCache.Store(ty, setter)

	return setter, nil
}

func (d *Decoder) makeTextSetterOf(ty reflect.Type) (textSetter, error) {
	if reflect.PointerTo(ty).Implements(tyTextUnmarshaler) {
		return setTextUnmarshaler, nil
	}

	switch ty.Kind() {
	case reflect.Bool:
		return setBool, nil

	case reflect.Int:
		switch unsafe.Sizeof(int(0)) {
		case 4:
			return makeSetInt(TextSource.Int32, reflect.Value.SetInt), nil
		case 8:
			return makeSetInt(TextSource.Int64, reflect.Value.SetInt), nil
		default:
			panic("int must be 4 or 8 byte")
		}

	case reflect.Int8:
		return makeSetInt(TextSource.Int8, reflect.Value.SetInt), nil

	case reflect.Int16:
		return makeSetInt(TextSource.Int16, reflect.Value.SetInt), nil

	case reflect.Int32:
		return makeSetInt(TextSource.Int32, reflect.Value.SetInt), nil

	case reflect.Int64:
		return makeSetInt(TextSource.Int64, reflect.Value.SetInt), nil

	case reflect.Uint:
		switch unsafe.Sizeof(uint(0)) {
		case 4:
			return makeSetInt(TextSource.Uint32, reflect.Value.SetUint), nil
		case 8:
			return makeSetInt(TextSource.Uint64, reflect.Value.SetUint), nil
		default:
			panic("uint must be 4 or 8 byte")
		}

	case reflect.Uint8:
		return makeSetInt(TextSource.Uint8, reflect.Value.SetUint), nil

	case reflect.Uint16:
		return makeSetInt(TextSource.Uint16, reflect.Value.SetUint), nil

	case reflect.Uint32:
		return makeSetInt(TextSource.Uint32, reflect.Value.SetUint), nil

	case reflect.Uint64:
		return makeSetInt(TextSource.Uint64, reflect.Value.SetUint), nil

	case reflect.Float32, reflect.Float64:
		return setFloat, nil

	case reflect.String:
		return setString, nil

	case reflect.Slice:
		if ty.Elem().Kind() == reflect.Uint8 {
			return setBytes, nil
		}

		return nil, NotSupportedError{Type: ty}

	case reflect.Pointer:
		return d.makeTextSetPointer(ty)

	default:
		return nil, NotSupportedError{Type: ty}
	}
}

func (d *Decoder) makeTextSetPointer(ty reflect.Type) (textSetter, error) {
	pointeeType := ty.Elem()

	pointeeSetter, err := d.textSetterOf(pointeeType)
	if err != nil {
		return nil, err
	}

	setter := func(text string, target reflect.Value) error {
		newValue := reflect.New(pointeeType)
		if err := pointeeSetter(text, newValue.Elem()); err != nil {
			return err
		}

		target.Set(newValue)

		return nil
	}

	return setter, nil
}

func (d *Decoder) makeSetPointer(inConstruction typeSet, ty reflect.Type) (setter, error) {
	pointeeType := ty.Elem()

	pointeeSetter, err := d.setterOf(inConstruction, pointeeType)
	if err != nil {
		return nil, err
	}

	setter := func(dr *driver, target reflect.Value) error {
		// newValue is now a pointer to an instance of the pointeeType
		newValue := reflect.New(pointeeType)
		if err := pointeeSetter(dr, newValue.Elem()); err != nil {
			return err
		}

		// set pointer to the new value
		target.Set(newValue)

		return nil
	}

	return setter, err
}

func setBool(text string, target reflect.Value) error {
	boolValue, err := TextSource(text).Bool()
	if err != nil {
		return fmt.Errorf("get bool value: %w", err)
	}

	target.SetBool(boolValue)
	return nil
}

func makeSetInt[T constraints.Integer, V int64 | uint64](
	parse func(TextSource) (T, error),
	setValue func(reflect.Value, V),
) textSetter {
	return func(text string, target reflect.Value) error {
		parsedValue, err := parse(TextSource(text))
		if err != nil {
			return fmt.Errorf("get %T value: %w", parsedValue, err)
		}

		setValue(target, V(parsedValue))
		return nil
	}
}

func setFloat(text string, target reflect.Value) error {
	floatValue, err := TextSource(text).Float()
	if err != nil {
		return fmt.Errorf("get float value: %w", err)
	}

	target.SetFloat(floatValue)
	return nil
}

func setString(text string, target reflect.Value) error {
	target.SetString(text)
	return nil
}

func setBytes(text string, target reflect.Value) error {
	target.SetBytes([]byte(text))
	return nil
}

func setTextUnmarshaler(text string, target reflect.Value) error {
	m := target.Addr().Interface().(encoding.TextUnmarshaler)
	return m.UnmarshalText([]byte(text))
}

func (d *Decoder) makeSetStruct(inConstruction typeSet, ty reflect.Type) (setter, error) {
	structTag := d.structTag
	if structTag == "" {
		structTag = "xml"
	}

	fields := fieldsToDeserialize(ty, structTag)

	var attrFields []field
	var attrSetters []textSetter

	var elemFields []field
	var elemSetters []setter
	elemIndex := map[string]int{}

	var valueField *field
	var valueSetter setter
	var valueTextSetter textSetter

	for _, fi := range fields {
		switch fi.Mode {
		case modeAttr:
			set, err := d.textSetterOf(fi.Type)
			if err != nil {
				return nil, fmt.Errorf("setter for attribute field %q: %w", fi.Name, err)
			}

			attrFields = append(attrFields, fi)
			attrSetters = append(attrSetters, set)

		case modeValue:
			if valueField != nil {
				return nil, fmt.Errorf("multiple value fields on %q", ty)
			}

			fi := fi
			valueField = &fi

			if isElementSequence(fi.Type) {
				set, err := d.setterOf(inConstruction, fi.Type)
				if err != nil {
					return nil, fmt.Errorf("setter for value field %q: %w", fi.Name, err)
				}
				valueSetter = set
			} else {
				set, err := d.textSetterOf(fi.Type)
				if err != nil {
					return nil, fmt.Errorf("setter for value field %q: %w", fi.Name, err)
				}
				valueTextSetter = set
			}

		default:
			set, err := d.setterOf(inConstruction, fi.Type)
			if err != nil {
				return nil, fmt.Errorf("setter for field %q: %w", fi.Name, err)
			}

			elemIndex[fi.Name] = len(elemFields)
			elemFields = append(elemFields, fi)
			elemSetters = append(elemSetters, set)
		}
	}

	setter := func(dr *driver, target reflect.Value) error {
		ev, err := dr.reader.Next()
		if err != nil {
			return err
		}

		start, ok := ev.(xmlstream.StartElement)
		if !ok {
			return fmt.Errorf("expected start element for %q, got %s", ty, eventName(ev))
		}

		var seenAttrs, seenElems []bool
		if d.requireValues {
			seenAttrs = make([]bool, len(attrFields))
			seenElems = make([]bool, len(elemFields))
		}

		for idx, fi := range attrFields {
			value, ok := start.Attribute(fi.Name)
			if !ok {
				continue
			}

			if err := attrSetters[idx](value, target.FieldByIndex(fi.Index)); err != nil {
				return fmt.Errorf("set attribute %q on %q: %w", fi.Name, target.Type(), err)
			}

			if seenAttrs != nil {
				seenAttrs[idx] = true
			}
		}

		// character content collected for a text-like value field
		var text strings.Builder

		for {
			ev, err := dr.reader.Peek()
			if err != nil {
				return err
			}

			switch ev := ev.(type) {
			case xmlstream.EOF:
				return fmt.Errorf("unexpected end of document inside <%s>", start.Name.Local)

			case xmlstream.EndElement:
				if _, err := dr.reader.Next(); err != nil {
					return err
				}

				if valueField != nil && valueTextSetter != nil {
					if err := valueTextSetter(text.String(), target.FieldByIndex(valueField.Index)); err != nil {
						return fmt.Errorf("set value field %q on %q: %w", valueField.Name, target.Type(), err)
					}
				}

				if d.requireValues {
					for idx, seen := range seenAttrs {
						if !seen {
							return fmt.Errorf("attribute %q: %w", attrFields[idx].Name, ErrNoValue)
						}
					}
					for idx, seen := range seenElems {
						if !seen {
							return fmt.Errorf("field %q: %w", elemFields[idx].Name, ErrNoValue)
						}
					}
				}

				return nil

			case xmlstream.CharData:
				if _, err := dr.reader.Next(); err != nil {
					return err
				}

				if valueTextSetter != nil {
					text.WriteString(string(ev))
				}

			case xmlstream.StartElement:
				if valueSetter != nil {
					// flattened mode: the value field swallows every child,
					// regardless of name
					dr.hasValueField = true
					err := valueSetter(dr, target.FieldByIndex(valueField.Index))
					dr.hasValueField = false
					if err != nil {
						return fmt.Errorf("set value field %q on %q: %w", valueField.Name, target.Type(), err)
					}
					continue
				}

				idx, ok := elemIndex[ev.Name.Local]
				if !ok {
					// unknown child, skip the whole element
					if err := dr.skip(); err != nil {
						return err
					}
					continue
				}

				fi := elemFields[idx]
				if err := elemSetters[idx](dr, target.FieldByIndex(fi.Index)); err != nil {
					return fmt.Errorf("set field %q on %q: %w", fi.Name, target.Type(), err)
				}

				if seenElems != nil {
					seenElems[idx] = true
				}
			}
		}
	}

	return setter, nil
}

// isElementSequence reports whether a value field of this type collects
// child elements rather than character content.
func isElementSequence(ty reflect.Type) bool {
	if reflect.PointerTo(ty).Implements(tyTextUnmarshaler) {
		return false
	}

	switch ty.Kind() {
	case reflect.Slice:
		return ty.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func (d *Decoder) makeSetMap(inConstruction typeSet, ty reflect.Type) (setter, error) {
	// the key is parsed from the child element's name
	keySetter, err := d.textSetterOf(ty.Key())
	if err != nil {
		return nil, fmt.Errorf("setter for key type %q: %w", ty, err)
	}

	valueSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for value type %q: %w", ty, err)
	}

	keyType := ty.Key()
	valueType := ty.Elem()

	setter := func(dr *driver, target reflect.Value) error {
		ev, err := dr.reader.Next()
		if err != nil {
			return err
		}

		start, ok := ev.(xmlstream.StartElement)
		if !ok {
			return fmt.Errorf("expected start element for %q, got %s", ty, eventName(ev))
		}

		mapTarget := reflect.MakeMap(ty)

		for {
			ev, err := dr.reader.Peek()
			if err != nil {
				return err
			}

			switch ev := ev.(type) {
			case xmlstream.EOF:
				return fmt.Errorf("unexpected end of document inside <%s>", start.Name.Local)

			case xmlstream.EndElement:
				if _, err := dr.reader.Next(); err != nil {
					return err
				}

				target.Set(mapTarget)

				return nil

			case xmlstream.CharData:
				// text between entries carries no key, drop it
				if _, err := dr.reader.Next(); err != nil {
					return err
				}

			case xmlstream.StartElement:
				keyTarget := reflect.New(keyType).Elem()
				if err := keySetter(ev.Name.Local, keyTarget); err != nil {
					return fmt.Errorf("set key: %w", err)
				}

				valueTarget := reflect.New(valueType).Elem()
				if err := valueSetter(dr, valueTarget); err != nil {
					return fmt.Errorf("set value of key %q: %w", ev.Name.Local, err)
				}

				mapTarget.SetMapIndex(keyTarget, valueTarget)
			}
		}
	}

	return setter, nil
}

func (d *Decoder) makeSetSlice(inConstruction typeSet, ty reflect.Type) (setter, error) {
	elementSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for element type %q: %w", ty, err)
	}

	// a empty element
	placeholderValue := reflect.New(ty.Elem()).Elem()

	setter := func(dr *driver, target reflect.Value) error {
		seq, err := newSeqAccess(dr)
		if err != nil {
			return err
		}

		for {
			more, err := seq.next(func(dr *driver) error {
				// add an empty element to grow the list
				target.Set(reflect.Append(target, placeholderValue))

				idx := target.Len() - 1
				elementValue := target.Index(idx)
				if err := elementSetter(dr, elementValue); err != nil {
					return fmt.Errorf("set element idx=%d: %w", idx, err)
				}

				return nil
			})
			if err != nil {
				return err
			}

			if !more {
				return nil
			}
		}
	}

	return setter, nil
}

func (d *Decoder) makeSetArray(inConstruction typeSet, ty reflect.Type) (setter, error) {
	elementSetter, err := d.setterOf(inConstruction, ty.Elem())
	if err != nil {
		return nil, fmt.Errorf("setter for element type %q: %w", ty, err)
	}

	// number of elements in the array
	elementCount := ty.Len()

	setter := func(dr *driver, target reflect.Value) error {
		seq, err := newSeqAccess(dr)
		if err != nil {
			return err
		}

		idx := 0

		for {
			more, err := seq.next(func(dr *driver) error {
				if idx >= elementCount {
					// surplus sibling, drain it so the stream stays
					// positioned after the run
					return dr.discard()
				}

				elementValue := target.Index(idx)
				if err := elementSetter(dr, elementValue); err != nil {
					return fmt.Errorf("set element idx=%d: %w", idx, err)
				}

				return nil
			})
			if err != nil {
				return err
			}

			if !more {
				return nil
			}

			idx++
		}
	}

	return setter, nil
}
