// Package locate estimates a device position from ranged distances to
// anchors at known positions.
//
// All coordinates and distances are in millimetres, the unit ranging radios
// report. Trilaterate minimises the sum of squared range residuals with
// gonum's BFGS optimiser.
package locate
