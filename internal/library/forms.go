package library

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"library/internal/models"
)

// BookForm is the submitted book form. Status is not part of it.
type BookForm struct {
	Title         string `form:"title" validate:"required,max=100"`
	Author        string `form:"author" validate:"required,max=100"`
	ISBN          string `form:"isbn" validate:"max=20"`
	PublishedYear string `form:"published_year" validate:"omitempty,number,max=4"`
	Category      string `form:"category" validate:"max=50"`
}

// MemberForm is the submitted member form
type MemberForm struct {
	Name  string `form:"name" validate:"required,max=100"`
	Email string `form:"email" validate:"omitempty,email,max=100"`
	Phone string `form:"phone" validate:"max=20"`
}

// LoanForm is the submitted loan creation form
type LoanForm struct {
	BookID   string `form:"book_id" validate:"required,number"`
	MemberID string `form:"member_id" validate:"required,number"`
	DueDate  string `form:"due_date" validate:"required,datetime=2006-01-02"`
}

// newValidator reports field names by their form tag
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// validateForm trims the form in place and checks its rules
func (s *Service) validateForm(form interface{}) error {
	trimStrings(form)
	if err := s.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return makeErr(CodeValidation, describe(fieldErrs), err)
		}
		return makeErr(CodeValidation, err.Error(), err)
	}
	return nil
}

func describe(fieldErrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		case "number":
			msgs = append(msgs, fmt.Sprintf("%s must be a whole number", fe.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// trimStrings trims surrounding whitespace from every string field of a form pointer
func trimStrings(form interface{}) {
	v := reflect.ValueOf(form)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	for i := 0; i < v.NumField(); i++ {
		if f := v.Field(i); f.Kind() == reflect.String && f.CanSet() {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (f BookForm) input() models.BookInput {
	in := models.BookInput{
		Title:    f.Title,
		Author:   f.Author,
		ISBN:     optional(f.ISBN),
		Category: optional(f.Category),
	}
	if f.PublishedYear != "" {
		// Already checked to be at most four digits
		year, _ := strconv.Atoi(f.PublishedYear)
		in.PublishedYear = &year
	}
	return in
}

func (f MemberForm) input() models.MemberInput {
	return models.MemberInput{
		Name:  f.Name,
		Email: optional(f.Email),
		Phone: optional(f.Phone),
	}
}

// parsed returns the ids and due date of a validated loan form
func (f LoanForm) parsed() (bookID, memberID int64, due time.Time, err error) {
	bookID, err = parseID("book_id", f.BookID)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	memberID, err = parseID("member_id", f.MemberID)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	due, err = time.Parse(models.DateLayout, f.DueDate)
	if err != nil {
		return 0, 0, time.Time{}, makeErr(CodeValidation, "due_date must be a date in YYYY-MM-DD format", err)
	}
	return bookID, memberID, due, nil
}

func parseID(field, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, makeErr(CodeValidation, fmt.Sprintf("%s must be a positive integer", field), err)
	}
	return id, nil
}
