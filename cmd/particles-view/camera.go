package main

import (
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// orbitCamera circles a target. Arrow keys orbit, scroll zooms.
type orbitCamera struct {
	target   mgl32.Vec3
	yaw      float32
	pitch    float32
	distance float32
}

func newOrbitCamera(target mgl32.Vec3) *orbitCamera {
	return &orbitCamera{target: target, yaw: 0.6, pitch: 0.3, distance: 12}
}

func (c *orbitCamera) update(w *glfw.Window, dt float32) {
	const speed = 1.5
	if w.GetKey(glfw.KeyLeft) == glfw.Press {
		c.yaw -= speed * dt
	}
	if w.GetKey(glfw.KeyRight) == glfw.Press {
		c.yaw += speed * dt
	}
	if w.GetKey(glfw.KeyUp) == glfw.Press {
		c.pitch += speed * dt
	}
	if w.GetKey(glfw.KeyDown) == glfw.Press {
		c.pitch -= speed * dt
	}
	c.pitch = mgl32.Clamp(c.pitch, -1.5, 1.5)
}

func (c *orbitCamera) zoom(steps float32) {
	c.distance = mgl32.Clamp(c.distance*float32(math.Pow(0.9, float64(steps))), 1, 500)
}

func (c *orbitCamera) eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.pitch)))
	return c.target.Add(mgl32.Vec3{
		c.distance * cp * float32(math.Sin(float64(c.yaw))),
		c.distance * float32(math.Sin(float64(c.pitch))),
		c.distance * cp * float32(math.Cos(float64(c.yaw))),
	})
}

func (c *orbitCamera) viewProj(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 2000)
	view := mgl32.LookAtV(c.eye(), c.target, mgl32.Vec3{0, 1, 0})
	return proj.Mul4(view)
}
