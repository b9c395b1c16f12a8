/*
Package rgb2spec defines the binary coefficient table that maps RGB colors to
sigmoid-polynomial reflectance spectra, with its serializer, reader and
nearest-cell lookup.

Tables are produced by the fit package, one per gamut: a renderer evaluates
the stored (a, b, c) coefficients as sigmoid(a*t^2 + b*t + c) over the
normalized 360-830nm axis to reconstruct a smooth, physically plausible
reflectance spectrum whose D65-weighted tristimulus integral reproduces the
original RGB value.
*/
package rgb2spec
