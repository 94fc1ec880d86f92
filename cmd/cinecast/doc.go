// Command cinecast turns annotated scripts into finished audiobooks: it
// drives script annotation, chunk management, voiceline generation, and
// final audio assembly from the terminal.
package main
