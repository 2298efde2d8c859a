// Package reception covers the front-desk surface: looking up
// students by admission number and issuing late passes. Issuing is a
// procedure-style operation; an unknown student or inactive record is
// a logical failure in the result body, not an HTTP error.
package reception
