/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Euler is a rotation in radians applied in YXZ order (yaw, then pitch, then
// roll) as used by the stored layout.
type Euler struct {
	X, Y, Z float64
}

// EulerFromVec reads a stored [x y z] rotation.
func EulerFromVec(v [3]float64) Euler { return Euler{X: v[0], Y: v[1], Z: v[2]} }

// Vec returns the rotation as [x y z].
func (e Euler) Vec() [3]float64 { return [3]float64{e.X, e.Y, e.Z} }

// Quat returns the equivalent quaternion Ry*Rx*Rz.
func (e Euler) Quat() mgl64.Quat {
	qy := mgl64.QuatRotate(e.Y, mgl64.Vec3{0, 1, 0})
	qx := mgl64.QuatRotate(e.X, mgl64.Vec3{1, 0, 0})
	qz := mgl64.QuatRotate(e.Z, mgl64.Vec3{0, 0, 1})
	return qy.Mul(qx).Mul(qz)
}

// Mat4 returns the rotation matrix.
func (e Euler) Mat4() mgl64.Mat4 { return e.Quat().Mat4() }

// EulerFromQuat extracts YXZ angles from a unit quaternion.
func EulerFromQuat(q mgl64.Quat) Euler {
	m := q.Normalize().Mat4()
	m12 := mgl64.Clamp(m.At(1, 2), -1, 1)
	var e Euler
	e.X = math.Asin(-m12)
	if math.Abs(m12) < 0.9999999 {
		e.Y = math.Atan2(m.At(0, 2), m.At(2, 2))
		e.Z = math.Atan2(m.At(1, 0), m.At(1, 1))
	} else {
		e.Y = math.Atan2(-m.At(2, 0), m.At(0, 0))
		e.Z = 0
	}
	return e
}

// RotateOnLocalY turns the rotation by angle around its own Y axis.
func (e Euler) RotateOnLocalY(angle float64) Euler {
	q := e.Quat().Mul(mgl64.QuatRotate(angle, mgl64.Vec3{0, 1, 0}))
	return EulerFromQuat(q)
}

// ApproxEqual compares component-wise within tol.
func (e Euler) ApproxEqual(o Euler, tol float64) bool {
	return math.Abs(e.X-o.X) <= tol && math.Abs(e.Y-o.Y) <= tol && math.Abs(e.Z-o.Z) <= tol
}

// NormalizeAngle wraps a into [-pi, pi].
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
