// Package grid normalizes spreadsheet-shaped JSON payloads.
//
// A payload arrives as text such as [["Underlying","Maturity"],["SPX Index","2y"]].
// Clean parses it, drops rows and columns that carry no data, and blanks the
// remaining empty cells so downstream code sees a rectangular grid.
package grid
