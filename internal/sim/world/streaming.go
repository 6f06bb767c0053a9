package world

import "dwellers.ai/internal/sim/grid"

// StreamChunks loads every chunk within LoadChunksRadius (Chebyshev) of a
// dweller and unloads loaded chunks no dweller touched. With no dwellers
// nothing is unloaded. It returns the load and unload requests issued.
func (w *World) StreamChunks() (loads, unloads []grid.ChunkKey) {
	if w.chunks == nil {
		return nil, nil
	}
	size := w.tun.ChunkSize
	r := w.tun.LoadChunksRadius

	touched := map[grid.ChunkKey]bool{}
	for _, d := range w.dwellers {
		center, _ := grid.ChunkOf(w.CellOf(d), size)
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				k := grid.ChunkKey{CX: center.CX + dx, CY: center.CY + dy}
				if touched[k] {
					continue
				}
				touched[k] = true
				loads = append(loads, k)
			}
		}
	}

	loaded := w.chunks.LoadedChunks()
	resident := make(map[grid.ChunkKey]bool, len(loaded))
	for _, k := range loaded {
		resident[k] = true
	}
	for _, k := range loads {
		fresh := w.chunks.LoadChunk(k)
		add(w.metrics.chunkLoads)
		if !resident[k] {
			w.emitChunk(EventChunkLoad, k)
		}
		if fresh && w.tun.SpawnMobsOnNewChunks {
			w.pendingMobChunks = append(w.pendingMobChunks, k)
		}
	}

	if len(w.dwellers) == 0 {
		return loads, nil
	}
	for _, k := range loaded {
		if touched[k] {
			continue
		}
		w.chunks.UnloadChunk(k)
		unloads = append(unloads, k)
		add(w.metrics.chunkUnloads)
		w.emitChunk(EventChunkUnload, k)
	}
	if len(unloads) > 0 {
		w.log.Debug().Int("unloaded", len(unloads)).Msg("chunks unloaded")
	}
	return loads, unloads
}
